package order

// EventKind classifies incoming user events.
type EventKind string

const (
	EventText    EventKind = "text"
	EventChoice  EventKind = "choice"
	EventFile    EventKind = "file"
	EventBack    EventKind = "back"
	EventConfirm EventKind = "confirm"
	EventCancel  EventKind = "cancel"
)

// Event is one incoming user action, already stripped of transport details.
type Event struct {
	UserID int64
	Kind   EventKind
	Text   string
	Choice string
	File   *FileRef
}

// Choice is one option the transport should render as a button.
type Choice struct {
	ID    string
	Label string
}

// Response is what the transport renders back to the user.
type Response struct {
	Text     string
	Choices  []Choice
	Terminal bool
}

// Well-known choice IDs. The transport maps ChoiceBack, ChoiceConfirm and
// ChoiceCancel to their event kinds; everything else arrives as EventChoice.
const (
	ChoiceBack       = "back"
	ChoiceConfirm    = "confirm"
	ChoiceCancel     = "cancel"
	ChoiceStartOrder = "start_order"
	ChoiceSkipPhone  = "skip_phone"
	ChoiceFilesDone  = "files_done"
)

const (
	choiceServicePrefix  = "svc:"
	choiceRemovePrefix   = "file_rm:"
	choiceMaterialPrefix = "mat:"
	choiceQualityPrefix  = "quality:"
	choiceInfillPrefix   = "infill:"
	choiceDeliveryPrefix = "delivery:"
	choiceEditPrefix     = "edit:"
)
