package portal

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/vigilo/internal/models"
)

// ParseListing extracts ticket rows from the rendered listing HTML. Used only
// as a fallback data source when REST-mode tokens are unavailable, so rows
// carry the visible fields but no raw payload.
func ParseListing(html string) ([]models.Ticket, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing html: %w", err)
	}

	var tickets []models.Ticket
	doc.Find(`[name="list-item"]`).Each(func(_ int, item *goquery.Selection) {
		ticketID, ok := item.Attr("data-request")
		if !ok || ticketID == "" {
			id, _ := item.Attr("id")
			ticketID = strings.TrimPrefix(id, "list-item-")
		}
		if ticketID == "" {
			return
		}

		text := func(selector string) string {
			return strings.TrimSpace(item.Find(selector).First().Text())
		}

		number := text(".tableless-td.numero .request-id")
		if number == "" {
			number = ticketID
		}

		description := text(".tableless-td.ellipsisDescricao div")
		if description == "" {
			description = text(".tableless-td.descricao div")
		}

		tickets = append(tickets, models.Ticket{
			TicketID:    ticketID,
			Number:      number,
			Title:       text(".tableless-td.solicitacao div"),
			Priority:    text(".tableless-td.prioridade .badge"),
			Situation:   text(".tableless-td.situacao .badge"),
			Status:      text(".tableless-td.situacao .badge"),
			CreatedDate: text(".tableless-td.dataCriacao div"),
			Assignee:    text(".tableless-td.responsavel div"),
			Requester:   text(".tableless-td.solicitante span"),
			SLA:         text(".tableless-td.SLA div"),
			DueDate:     text(".tableless-td.dataLimite div"),
			Service:     text(".tableless-td.servico div"),
			Description: description,
		})
	})

	return tickets, nil
}
