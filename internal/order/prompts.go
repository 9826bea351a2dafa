package order

import (
	"fmt"
	"strconv"

	"printbot/pkg/api"
)

var materialLabels = map[string]string{
	"pla":  "🔴 PLA (базовый)",
	"petg": "🟡 PETG (прочный)",
	"abs":  "⚫ ABS (термостойкий)",
	"tpu":  "🔵 TPU (гибкий)",
}

var qualityLabels = map[string]string{
	"draft":    "🟢 Черновое (0.3мм, быстро)",
	"standard": "🟡 Стандартное (0.2мм)",
	"high":     "🔴 Высокое (0.1мм, медленно)",
}

var infillLabels = map[int]string{
	15:  "📦 15% (лёгкая модель)",
	30:  "📦 30% (стандарт)",
	50:  "📦 50% (прочная)",
	100: "📦 100% (максимальная прочность)",
}

func materialLabel(m string) string {
	if l, ok := materialLabels[m]; ok {
		return l
	}
	return m
}

func qualityLabel(q string) string {
	if l, ok := qualityLabels[q]; ok {
		return l
	}
	return q
}

var (
	backChoice   = Choice{ID: ChoiceBack, Label: "⬅️ Назад"}
	cancelChoice = Choice{ID: ChoiceCancel, Label: "❌ Отменить заказ"}
)

// Prompt renders the message and keyboard for the session's current position.
// Used both for forward progress and for re-prompting after a rejected input.
func (m *Machine) Prompt(s *Session, env Env) Response {
	switch s.Step {
	case StepStart:
		return Response{
			Text:    "👋 Готовы оформить заказ на 3D-печать?",
			Choices: []Choice{{ID: ChoiceStartOrder, Label: "🛍️ Оформить заказ"}},
		}
	case StepServiceSelection:
		return promptServices(env)
	case StepContactInfo:
		switch s.ContactCursor {
		case ContactEmail:
			return promptEmail(s)
		case ContactPhone:
			return promptPhone(s)
		default:
			return promptName(s)
		}
	case StepFileUpload:
		return promptFiles(s)
	case StepSpecifications:
		switch s.SpecCursor {
		case SpecQuality:
			return promptQuality(s)
		case SpecInfill:
			return promptInfill(s)
		default:
			return promptMaterial(s)
		}
	case StepDelivery:
		if s.AwaitingAddress {
			return promptAddress(s)
		}
		return promptDelivery(s)
	case StepConfirmation:
		return promptConfirmation(s)
	}
	return Response{Text: "Используйте /order, чтобы начать оформление заказа."}
}

func promptServices(env Env) Response {
	if len(env.Services) == 0 {
		return Response{Text: "❌ В данный момент услуги недоступны.\nПопробуйте позже."}
	}
	choices := make([]Choice, 0, len(env.Services)+1)
	for _, svc := range env.Services {
		name := svc.Name
		if len([]rune(name)) > 30 {
			name = string([]rune(name)[:27]) + "..."
		}
		choices = append(choices, Choice{
			ID:    choiceServicePrefix + strconv.FormatInt(svc.ID, 10),
			Label: "🛍️ " + name,
		})
	}
	choices = append(choices, cancelChoice)
	return Response{Text: "🛍️ Выберите услугу для заказа:", Choices: choices}
}

func promptName(s *Session) Response {
	text := "👤 Контактная информация\n\nВведите ваше полное имя:"
	if s.ServiceName != "" {
		text = fmt.Sprintf("👤 Контактная информация\n\nВыбранная услуга: %s\n\nВведите ваше полное имя:", s.ServiceName)
	}
	if s.CustomerName != "" {
		text += fmt.Sprintf("\n(текущее значение: %s)", s.CustomerName)
	}
	return Response{Text: text, Choices: []Choice{backChoice, cancelChoice}}
}

func promptEmail(s *Session) Response {
	text := "📧 Введите ваш email:"
	if s.CustomerEmail != "" {
		text += fmt.Sprintf("\n(текущее значение: %s)", s.CustomerEmail)
	}
	return Response{Text: text, Choices: []Choice{backChoice, cancelChoice}}
}

func promptPhone(s *Session) Response {
	text := "📱 Введите номер телефона или пропустите этот шаг:"
	if s.CustomerPhone != "" {
		text += fmt.Sprintf("\n(текущее значение: %s)", s.CustomerPhone)
	}
	return Response{Text: text, Choices: []Choice{
		{ID: ChoiceSkipPhone, Label: "⏭️ Пропустить телефон"},
		backChoice,
		cancelChoice,
	}}
}

func promptFiles(s *Session) Response {
	text := "📁 Загрузка файлов\n\n" +
		"Отправьте файлы моделей для печати.\n" +
		"Поддерживаемые форматы: .stl, .obj, .3mf\n" +
		"Максимальный размер: 50 МБ"
	var choices []Choice
	if len(s.Files) > 0 {
		text += fmt.Sprintf("\n\nЗагружено файлов: %d", len(s.Files))
		for i, f := range s.Files {
			text += fmt.Sprintf("\n%d. %s (%.1f KB)", i+1, f.Name, float64(f.Size)/1024)
			choices = append(choices, Choice{
				ID:    choiceRemovePrefix + strconv.Itoa(i),
				Label: fmt.Sprintf("🗑️ Удалить %s", f.Name),
			})
		}
		choices = append([]Choice{{ID: ChoiceFilesDone, Label: "✅ Продолжить оформление"}}, choices...)
	}
	choices = append(choices, backChoice, cancelChoice)
	return Response{Text: text, Choices: choices}
}

func promptMaterial(s *Session) Response {
	return Response{
		Text: "⚙️ Параметры печати\n\nВыберите материал:",
		Choices: []Choice{
			{ID: choiceMaterialPrefix + "pla", Label: materialLabels["pla"]},
			{ID: choiceMaterialPrefix + "petg", Label: materialLabels["petg"]},
			{ID: choiceMaterialPrefix + "abs", Label: materialLabels["abs"]},
			{ID: choiceMaterialPrefix + "tpu", Label: materialLabels["tpu"]},
			backChoice,
			cancelChoice,
		},
	}
}

func promptQuality(s *Session) Response {
	return Response{
		Text: fmt.Sprintf("✅ Материал: %s\n\nВыберите качество печати:", materialLabel(s.Specs.Material)),
		Choices: []Choice{
			{ID: choiceQualityPrefix + "draft", Label: qualityLabels["draft"]},
			{ID: choiceQualityPrefix + "standard", Label: qualityLabels["standard"]},
			{ID: choiceQualityPrefix + "high", Label: qualityLabels["high"]},
			backChoice,
			cancelChoice,
		},
	}
}

func promptInfill(s *Session) Response {
	return Response{
		Text: fmt.Sprintf("✅ Качество: %s\n\nВыберите заполнение модели:", qualityLabel(s.Specs.Quality)),
		Choices: []Choice{
			{ID: choiceInfillPrefix + "15", Label: infillLabels[15]},
			{ID: choiceInfillPrefix + "30", Label: infillLabels[30]},
			{ID: choiceInfillPrefix + "50", Label: infillLabels[50]},
			{ID: choiceInfillPrefix + "100", Label: infillLabels[100]},
			backChoice,
			cancelChoice,
		},
	}
}

func promptDelivery(s *Session) Response {
	text := "🚚 Способ получения заказа\n\nКак вы хотите получить готовый заказ?"
	if s.DeliverySet {
		if s.DeliveryNeeded {
			text += "\n(текущий выбор: доставка)"
		} else {
			text += "\n(текущий выбор: самовывоз)"
		}
	}
	return Response{Text: text, Choices: []Choice{
		{ID: choiceDeliveryPrefix + "pickup", Label: "🏪 Самовывоз (бесплатно)"},
		{ID: choiceDeliveryPrefix + "shipping", Label: "🚚 Доставка"},
		backChoice,
		cancelChoice,
	}}
}

func promptAddress(s *Session) Response {
	text := "📍 Адрес доставки\n\nВведите полный адрес доставки:\n(город, улица, дом, квартира)"
	if s.DeliveryDetails != "" {
		text += fmt.Sprintf("\n(текущее значение: %s)", s.DeliveryDetails)
	}
	return Response{Text: text, Choices: []Choice{backChoice, cancelChoice}}
}

func promptConfirmation(s *Session) Response {
	text := "✅ Подтверждение заказа\n\n" + s.Summary() + "\n\n" +
		"Проверьте все данные и подтвердите заказ."
	return Response{Text: text, Choices: []Choice{
		{ID: ChoiceConfirm, Label: "✅ Подтвердить заказ"},
		{ID: choiceEditPrefix + "service", Label: "🛍️ Изменить услугу"},
		{ID: choiceEditPrefix + "contacts", Label: "👤 Изменить контакты"},
		{ID: choiceEditPrefix + "files", Label: "📁 Изменить файлы"},
		{ID: choiceEditPrefix + "specs", Label: "⚙️ Изменить параметры"},
		{ID: choiceEditPrefix + "delivery", Label: "🚚 Изменить доставку"},
		cancelChoice,
	}}
}

// validationMessage maps a rejected input to user guidance for the same step.
func validationMessage(ve *ValidationError) string {
	switch ve.Field {
	case "name":
		return "Имя должно содержать от 2 до 50 символов (буквы, пробелы, дефисы)."
	case "email":
		return "Некорректный email адрес. Пример: ivan@example.com"
	case "phone":
		return "Некорректный номер телефона. Пример: +79161234567"
	case "address":
		return "Адрес слишком короткий. Укажите полный адрес доставки."
	case "file":
		if ve.Reason == ReasonSize {
			return "Файл слишком большой. Максимальный размер: 50 МБ."
		}
		return "Неподдерживаемый формат файла. Допустимы: .stl, .obj, .3mf"
	case "files":
		return "Загрузите хотя бы один файл, чтобы продолжить."
	case "choice":
		return "Пожалуйста, выберите один из предложенных вариантов."
	}
	return "Некорректный ввод. Попробуйте ещё раз."
}

// Env carries read-only data a transition may need for validation and
// rendering. It is resolved by the orchestrator outside the session lock.
type Env struct {
	Services []api.Service
}
