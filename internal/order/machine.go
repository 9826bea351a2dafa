package order

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"printbot/pkg/api"
)

// Machine implements the order step transitions. Transition is a pure function
// of (session, event, env): it mutates the session only when the input
// validates, performs no I/O and returns the response to render. Cancel and
// terminal submission are handled by the orchestrator.
type Machine struct {
	logger *zap.Logger
}

func NewMachine(logger *zap.Logger) *Machine {
	return &Machine{logger: logger}
}

// NeedsServices reports whether handling ev on the session may require the
// service catalog, so the orchestrator can resolve it before taking the lock.
func (m *Machine) NeedsServices(s Session, ev Event) bool {
	switch s.Step {
	case StepStart, StepServiceSelection:
		return true
	case StepContactInfo:
		return ev.Kind == EventBack && s.ContactCursor == ContactName
	case StepConfirmation:
		return ev.Kind == EventChoice && ev.Choice == choiceEditPrefix+"service"
	}
	return false
}

// Transition applies one event to the session and returns the next prompt.
// On error the session is left untouched.
func (m *Machine) Transition(s *Session, ev Event, env Env) (Response, error) {
	switch s.Step {
	case StepStart:
		return m.transitionStart(s, ev, env)
	case StepServiceSelection:
		return m.transitionService(s, ev, env)
	case StepContactInfo:
		return m.transitionContact(s, ev, env)
	case StepFileUpload:
		return m.transitionFiles(s, ev)
	case StepSpecifications:
		return m.transitionSpecs(s, ev)
	case StepDelivery:
		return m.transitionDelivery(s, ev)
	case StepConfirmation:
		return m.transitionConfirmation(s, ev, env)
	}
	return Response{}, &InvalidTransitionError{Step: s.Step, Kind: ev.Kind}
}

func (m *Machine) transitionStart(s *Session, ev Event, env Env) (Response, error) {
	switch ev.Kind {
	case EventText, EventChoice:
		s.Step = StepServiceSelection
		return promptServices(env), nil
	}
	return Response{}, &InvalidTransitionError{Step: s.Step, Kind: ev.Kind}
}

func (m *Machine) transitionService(s *Session, ev Event, env Env) (Response, error) {
	switch ev.Kind {
	case EventChoice:
		id, ok := strings.CutPrefix(ev.Choice, choiceServicePrefix)
		if !ok {
			return Response{}, &ValidationError{Field: "choice"}
		}
		serviceID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return Response{}, &ValidationError{Field: "choice"}
		}
		var selected *api.Service
		for i := range env.Services {
			if env.Services[i].ID == serviceID {
				selected = &env.Services[i]
				break
			}
		}
		if selected == nil {
			return Response{}, &ValidationError{Field: "choice"}
		}
		s.ServiceID = selected.ID
		s.ServiceName = selected.Name
		s.Step = StepContactInfo
		s.ContactCursor = ContactName
		m.logger.Debug("service selected",
			zap.Int64("user_id", s.UserID),
			zap.Int64("service_id", serviceID))
		return promptName(s), nil
	case EventText:
		return Response{}, &ValidationError{Field: "choice"}
	}
	return Response{}, &InvalidTransitionError{Step: s.Step, Kind: ev.Kind}
}

func (m *Machine) transitionContact(s *Session, ev Event, env Env) (Response, error) {
	switch s.ContactCursor {
	case ContactName:
		switch ev.Kind {
		case EventText:
			name, err := ValidateName(ev.Text)
			if err != nil {
				return Response{}, err
			}
			s.CustomerName = name
			s.ContactCursor = ContactEmail
			return promptEmail(s), nil
		case EventBack:
			s.Step = StepServiceSelection
			return promptServices(env), nil
		}
	case ContactEmail:
		switch ev.Kind {
		case EventText:
			email, err := ValidateEmail(ev.Text)
			if err != nil {
				return Response{}, err
			}
			s.CustomerEmail = email
			s.ContactCursor = ContactPhone
			return promptPhone(s), nil
		case EventBack:
			s.ContactCursor = ContactName
			return promptName(s), nil
		}
	case ContactPhone:
		switch ev.Kind {
		case EventText:
			phone, err := ValidatePhone(ev.Text)
			if err != nil {
				return Response{}, err
			}
			s.CustomerPhone = phone
			s.Step = StepFileUpload
			return promptFiles(s), nil
		case EventChoice:
			if ev.Choice == ChoiceSkipPhone {
				s.CustomerPhone = ""
				s.Step = StepFileUpload
				return promptFiles(s), nil
			}
		case EventBack:
			s.ContactCursor = ContactEmail
			return promptEmail(s), nil
		}
	}
	return Response{}, &InvalidTransitionError{Step: s.Step, Kind: ev.Kind}
}

func (m *Machine) transitionFiles(s *Session, ev Event) (Response, error) {
	switch ev.Kind {
	case EventFile:
		if ev.File == nil {
			return Response{}, &ValidationError{Field: "file", Reason: ReasonFormat}
		}
		if err := ValidateFileMeta(ev.File.Name, ev.File.Size); err != nil {
			return Response{}, err
		}
		ref := *ev.File
		ref.Data = nil
		s.Files = append(s.Files, ref)
		m.logger.Debug("file attached",
			zap.Int64("user_id", s.UserID),
			zap.String("filename", ev.File.Name),
			zap.Int("total", len(s.Files)))
		return promptFiles(s), nil
	case EventChoice:
		switch {
		case ev.Choice == ChoiceFilesDone:
			if len(s.Files) == 0 {
				return Response{}, &ValidationError{Field: "files", Reason: "empty"}
			}
			s.Step = StepSpecifications
			s.SpecCursor = SpecMaterial
			return promptMaterial(s), nil
		case strings.HasPrefix(ev.Choice, choiceRemovePrefix):
			idx, err := strconv.Atoi(strings.TrimPrefix(ev.Choice, choiceRemovePrefix))
			if err != nil || idx < 0 || idx >= len(s.Files) {
				return Response{}, &ValidationError{Field: "choice"}
			}
			s.Files = append(s.Files[:idx], s.Files[idx+1:]...)
			return promptFiles(s), nil
		}
		return Response{}, &ValidationError{Field: "choice"}
	case EventBack:
		s.Step = StepContactInfo
		s.ContactCursor = ContactPhone
		return promptPhone(s), nil
	}
	return Response{}, &InvalidTransitionError{Step: s.Step, Kind: ev.Kind}
}

func (m *Machine) transitionSpecs(s *Session, ev Event) (Response, error) {
	switch s.SpecCursor {
	case SpecMaterial:
		switch ev.Kind {
		case EventChoice:
			mat, ok := strings.CutPrefix(ev.Choice, choiceMaterialPrefix)
			if !ok || materialLabels[mat] == "" {
				return Response{}, &ValidationError{Field: "choice"}
			}
			s.Specs.Material = mat
			s.SpecCursor = SpecQuality
			return promptQuality(s), nil
		case EventText:
			return Response{}, &ValidationError{Field: "choice"}
		case EventBack:
			s.Step = StepFileUpload
			return promptFiles(s), nil
		}
	case SpecQuality:
		switch ev.Kind {
		case EventChoice:
			q, ok := strings.CutPrefix(ev.Choice, choiceQualityPrefix)
			if !ok || qualityLabels[q] == "" {
				return Response{}, &ValidationError{Field: "choice"}
			}
			s.Specs.Quality = q
			s.SpecCursor = SpecInfill
			return promptInfill(s), nil
		case EventText:
			return Response{}, &ValidationError{Field: "choice"}
		case EventBack:
			s.SpecCursor = SpecMaterial
			return promptMaterial(s), nil
		}
	case SpecInfill:
		switch ev.Kind {
		case EventChoice:
			raw, ok := strings.CutPrefix(ev.Choice, choiceInfillPrefix)
			if !ok {
				return Response{}, &ValidationError{Field: "choice"}
			}
			infill, err := strconv.Atoi(raw)
			if err != nil || infillLabels[infill] == "" {
				return Response{}, &ValidationError{Field: "choice"}
			}
			s.Specs.Infill = infill
			s.Step = StepDelivery
			s.AwaitingAddress = false
			return promptDelivery(s), nil
		case EventText:
			return Response{}, &ValidationError{Field: "choice"}
		case EventBack:
			s.SpecCursor = SpecQuality
			return promptQuality(s), nil
		}
	}
	return Response{}, &InvalidTransitionError{Step: s.Step, Kind: ev.Kind}
}

func (m *Machine) transitionDelivery(s *Session, ev Event) (Response, error) {
	if s.AwaitingAddress {
		switch ev.Kind {
		case EventText:
			addr, err := ValidateAddress(ev.Text)
			if err != nil {
				return Response{}, err
			}
			s.DeliveryNeeded = true
			s.DeliveryDetails = addr
			s.DeliverySet = true
			s.AwaitingAddress = false
			s.Step = StepConfirmation
			return promptConfirmation(s), nil
		case EventBack:
			s.AwaitingAddress = false
			return promptDelivery(s), nil
		}
		return Response{}, &InvalidTransitionError{Step: s.Step, Kind: ev.Kind}
	}

	switch ev.Kind {
	case EventChoice:
		switch ev.Choice {
		case choiceDeliveryPrefix + "pickup":
			s.DeliverySet = true
			s.DeliveryNeeded = false
			s.DeliveryDetails = ""
			s.Step = StepConfirmation
			return promptConfirmation(s), nil
		case choiceDeliveryPrefix + "shipping":
			s.AwaitingAddress = true
			return promptAddress(s), nil
		}
		return Response{}, &ValidationError{Field: "choice"}
	case EventText:
		return Response{}, &ValidationError{Field: "choice"}
	case EventBack:
		s.Step = StepSpecifications
		s.SpecCursor = SpecInfill
		return promptInfill(s), nil
	}
	return Response{}, &InvalidTransitionError{Step: s.Step, Kind: ev.Kind}
}

func (m *Machine) transitionConfirmation(s *Session, ev Event, env Env) (Response, error) {
	switch ev.Kind {
	case EventChoice:
		section, ok := strings.CutPrefix(ev.Choice, choiceEditPrefix)
		if !ok {
			return Response{}, &ValidationError{Field: "choice"}
		}
		switch section {
		case "service":
			s.Step = StepServiceSelection
			return promptServices(env), nil
		case "contacts":
			s.Step = StepContactInfo
			s.ContactCursor = ContactName
			return promptName(s), nil
		case "files":
			s.Step = StepFileUpload
			return promptFiles(s), nil
		case "specs":
			s.Step = StepSpecifications
			s.SpecCursor = SpecMaterial
			return promptMaterial(s), nil
		case "delivery":
			s.Step = StepDelivery
			s.AwaitingAddress = false
			return promptDelivery(s), nil
		}
		return Response{}, &ValidationError{Field: "choice"}
	case EventBack:
		s.Step = StepDelivery
		s.AwaitingAddress = false
		return promptDelivery(s), nil
	}
	return Response{}, &InvalidTransitionError{Step: s.Step, Kind: ev.Kind}
}

// PrepareSubmit validates that the session is complete and builds the backend
// payload. Called by the orchestrator under the session lock; the network call
// itself happens outside of it.
func (m *Machine) PrepareSubmit(s *Session) (api.OrderRequest, error) {
	if s.Step != StepConfirmation {
		return api.OrderRequest{}, &InvalidTransitionError{Step: s.Step, Kind: EventConfirm}
	}
	if !s.Complete() {
		return api.OrderRequest{}, &ValidationError{Field: "order", Reason: "incomplete"}
	}
	return s.OrderRequest(), nil
}
