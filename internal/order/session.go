package order

import (
	"fmt"
	"strings"
	"time"

	"printbot/pkg/api"
)

// Step is a named stage of the order-intake sequence.
type Step string

const (
	StepStart            Step = "start"
	StepServiceSelection Step = "service_selection"
	StepContactInfo      Step = "contact_info"
	StepFileUpload       Step = "file_upload"
	StepSpecifications   Step = "specifications"
	StepDelivery         Step = "delivery"
	StepConfirmation     Step = "confirmation"
	StepCompleted        Step = "completed"
)

// ContactField is the sub-cursor inside StepContactInfo.
type ContactField string

const (
	ContactName  ContactField = "name"
	ContactEmail ContactField = "email"
	ContactPhone ContactField = "phone"
)

// SpecField is the sub-cursor inside StepSpecifications.
type SpecField string

const (
	SpecMaterial SpecField = "material"
	SpecQuality  SpecField = "quality"
	SpecInfill   SpecField = "infill"
)

// FileRef is one uploaded model file: local metadata plus the remote token
// returned by the backend. Data is only populated on an inbound file event and
// is dropped once the bytes reach the backend; the store never holds it.
type FileRef struct {
	Name  string
	Size  int64
	Token string
	Data  []byte
}

// Specifications holds the print parameters. Zero values mean "not chosen yet".
type Specifications struct {
	Material string
	Quality  string
	Infill   int
}

// Session is the in-progress order of one user. It is owned by the Store and
// must only be mutated through Store.Update.
type Session struct {
	UserID        int64
	Step          Step
	ContactCursor ContactField
	SpecCursor    SpecField

	ServiceID   int64
	ServiceName string

	CustomerName  string
	CustomerEmail string
	CustomerPhone string

	Files []FileRef
	Specs Specifications

	// DeliverySet reports whether the delivery step was committed.
	// DeliveryDetails is populated iff DeliveryNeeded is true.
	DeliverySet     bool
	DeliveryNeeded  bool
	DeliveryDetails string

	// AwaitingAddress is set between choosing shipping and entering the address.
	AwaitingAddress bool

	CreatedAt time.Time
}

// Complete reports whether every field required for submission is present.
func (s *Session) Complete() bool {
	return s.CustomerName != "" &&
		s.CustomerEmail != "" &&
		s.ServiceID != 0 &&
		len(s.Files) > 0 &&
		s.Specs.Material != "" &&
		s.Specs.Quality != "" &&
		s.Specs.Infill != 0 &&
		s.DeliverySet &&
		(!s.DeliveryNeeded || s.DeliveryDetails != "")
}

// OrderRequest converts the session into the backend order payload.
func (s *Session) OrderRequest() api.OrderRequest {
	specs := map[string]any{
		"material":     s.Specs.Material,
		"quality":      s.Specs.Quality,
		"infill":       s.Specs.Infill,
		"order_source": "telegram_bot",
		"bot_user_id":  s.UserID,
	}
	if s.CustomerPhone != "" {
		specs["customer_phone"] = s.CustomerPhone
	}

	files := make([]api.FileInfo, 0, len(s.Files))
	for _, f := range s.Files {
		files = append(files, api.FileInfo{
			Filename: f.Name,
			Size:     f.Size,
			Token:    f.Token,
		})
	}

	return api.OrderRequest{
		CustomerName:    s.CustomerName,
		CustomerEmail:   s.CustomerEmail,
		CustomerPhone:   s.CustomerPhone,
		ServiceID:       s.ServiceID,
		Source:          "TELEGRAM",
		Specifications:  specs,
		Files:           files,
		DeliveryNeeded:  s.DeliveryNeeded,
		DeliveryDetails: s.DeliveryDetails,
	}
}

// Summary renders the order résumé shown at the confirmation step.
func (s *Session) Summary() string {
	var b strings.Builder
	b.WriteString("📋 Резюме заказа:\n\n")
	b.WriteString(fmt.Sprintf("👤 Имя: %s\n", orDefault(s.CustomerName, "не указано")))
	b.WriteString(fmt.Sprintf("📧 Email: %s\n", orDefault(s.CustomerEmail, "не указан")))
	b.WriteString(fmt.Sprintf("📱 Телефон: %s\n", orDefault(s.CustomerPhone, "не указан")))
	b.WriteString(fmt.Sprintf("🛍️ Услуга: %s\n", orDefault(s.ServiceName, "не выбрана")))
	b.WriteString(fmt.Sprintf("📁 Файлов: %d\n", len(s.Files)))
	for _, f := range s.Files {
		b.WriteString(fmt.Sprintf("  • %s (%.1f KB)\n", f.Name, float64(f.Size)/1024))
	}

	if s.Specs.Material != "" || s.Specs.Quality != "" || s.Specs.Infill != 0 {
		b.WriteString("\n⚙️ Параметры печати:\n")
		if s.Specs.Material != "" {
			b.WriteString(fmt.Sprintf("  • Материал: %s\n", materialLabel(s.Specs.Material)))
		}
		if s.Specs.Quality != "" {
			b.WriteString(fmt.Sprintf("  • Качество: %s\n", qualityLabel(s.Specs.Quality)))
		}
		if s.Specs.Infill != 0 {
			b.WriteString(fmt.Sprintf("  • Заполнение: %d%%\n", s.Specs.Infill))
		}
	}

	if s.DeliverySet {
		b.WriteString("\n")
		if s.DeliveryNeeded {
			b.WriteString("🚚 Доставка: требуется\n")
			if s.DeliveryDetails != "" {
				b.WriteString(fmt.Sprintf("📍 Адрес: %s\n", s.DeliveryDetails))
			}
		} else {
			b.WriteString("🏪 Доставка: самовывоз\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
