package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/platinummonkey/lunchbox/pkg/calendar"
	"github.com/platinummonkey/lunchbox/pkg/pricing"
)

const (
	TemplateOrderConfirmation  = "orderConfirmation"
	TemplateAccessConfirmation = "accessConfirmation"
)

// OrderConfirmation holds the fields of the order confirmation email
type OrderConfirmation struct {
	To         string
	ChildName  string
	OrderType  pricing.OrderType
	StartDate  calendar.Date
	EndDate    calendar.Date
	PriceCents int64
}

// AccessConfirmation holds the fields of the access fee receipt
type AccessConfirmation struct {
	To         string
	ParentName string
	ExpiresAt  calendar.Date
}

var orderTypeNames = map[pricing.OrderType]string{
	pricing.OrderTypeDay:   "Dagbestelling",
	pricing.OrderTypeWeek:  "Weekbestelling",
	pricing.OrderTypeMonth: "Maandbestelling",
}

var dutchWeekdays = [...]string{"zondag", "maandag", "dinsdag", "woensdag", "donderdag", "vrijdag", "zaterdag"}

var dutchMonths = [...]string{"", "januari", "februari", "maart", "april", "mei", "juni",
	"juli", "augustus", "september", "oktober", "november", "december"}

// FormatOrderType returns the Dutch plan name
func FormatOrderType(t pricing.OrderType) string {
	if name, ok := orderTypeNames[t]; ok {
		return name
	}
	return string(t)
}

// FormatDate renders d as "maandag 1 december 2025"
func FormatDate(d calendar.Date) string {
	return fmt.Sprintf("%s %d %s %d", dutchWeekdays[d.Weekday()], d.Day(), dutchMonths[d.Month()], d.Year())
}

// FormatEuro renders cents as "€ 12,50"
func FormatEuro(cents int64) string {
	return "€ " + strings.Replace(pricing.FormatCents(cents), ".", ",", 1)
}

var funcs = template.FuncMap{
	"date":      FormatDate,
	"euro":      FormatEuro,
	"orderType": FormatOrderType,
	"year":      func() int { return time.Now().Year() },
}

var orderConfirmationHTML = template.Must(template.New(TemplateOrderConfirmation).Funcs(funcs).Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #1f2937;">
  <h1>Bestelling Bevestigd!</h1>
  <p>Bedankt voor uw bestelling. Hieronder vindt u de details van uw bestelling.</p>
  <h2>Bestelgegevens</h2>
  <table>
    <tr><td>Kind:</td><td>{{.ChildName}}</td></tr>
    <tr><td>Type bestelling:</td><td>{{orderType .OrderType}}</td></tr>
    <tr><td>Startdatum:</td><td>{{date .StartDate}}</td></tr>
    <tr><td>Einddatum:</td><td>{{date .EndDate}}</td></tr>
  </table>
  <p><strong>Totaal betaald:</strong> <strong>{{euro .PriceCents}}</strong></p>
  <p>Heeft u vragen over uw bestelling? Neem gerust contact met ons op.</p>
  <p style="font-size: 12px; color: #6b7280;">&copy; {{year}} Boterhammen op School</p>
</body>
</html>`))

var accessConfirmationHTML = template.Must(template.New(TemplateAccessConfirmation).Funcs(funcs).Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #1f2937;">
  <h1>Abonnement geactiveerd</h1>
  <p>Beste {{.ParentName}},</p>
  <p>Uw jaarlijkse toegang is betaald en geldig tot {{date .ExpiresAt}}.</p>
  <p>U kunt nu bestellingen plaatsen voor uw kinderen.</p>
</body>
</html>`))

// RenderOrderConfirmation builds the order confirmation message
func RenderOrderConfirmation(data OrderConfirmation) (Message, error) {
	var buf bytes.Buffer
	if err := orderConfirmationHTML.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("failed to render %s: %w", TemplateOrderConfirmation, err)
	}
	return Message{
		To:       data.To,
		Subject:  "Bestelling bevestigd voor " + data.ChildName,
		HTML:     buf.String(),
		Text:     fmt.Sprintf("%s voor %s van %s tot %s. Totaal betaald: %s.", FormatOrderType(data.OrderType), data.ChildName, FormatDate(data.StartDate), FormatDate(data.EndDate), FormatEuro(data.PriceCents)),
		Template: TemplateOrderConfirmation,
	}, nil
}

// RenderAccessConfirmation builds the access fee receipt
func RenderAccessConfirmation(data AccessConfirmation) (Message, error) {
	var buf bytes.Buffer
	if err := accessConfirmationHTML.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("failed to render %s: %w", TemplateAccessConfirmation, err)
	}
	return Message{
		To:       data.To,
		Subject:  "Uw toegang is geactiveerd",
		HTML:     buf.String(),
		Text:     "Uw jaarlijkse toegang is geldig tot " + FormatDate(data.ExpiresAt) + ".",
		Template: TemplateAccessConfirmation,
	}, nil
}
