package portal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingHTML = `
<html><body>
<div id="list-item-1001" name="list-item" data-request="1001">
  <div class="tableless-td numero"><span class="request-id">1001</span></div>
  <div class="tableless-td solicitacao"><div>Printer down</div></div>
  <div class="tableless-td prioridade"><span class="badge">Alta</span></div>
  <div class="tableless-td situacao"><span class="badge">Em Andamento</span></div>
  <div class="tableless-td dataCriacao"><div>20/08/2026 09:15</div></div>
  <div class="tableless-td responsavel"><div>Ana Souza</div></div>
  <div class="tableless-td solicitante"><span>Bruno Lima</span></div>
  <div class="tableless-td SLA"><div>4h</div></div>
  <div class="tableless-td dataLimite"><div>21/08/2026 09:15</div></div>
  <div class="tableless-td servico"><div>Impressão</div></div>
  <div class="tableless-td ellipsisDescricao"><div>Fila travada no andar 3</div></div>
</div>
<div id="list-item-1002" name="list-item">
  <div class="tableless-td solicitacao"><div>VPN access</div></div>
  <div class="tableless-td prioridade"><span class="badge">Média</span></div>
  <div class="tableless-td situacao"><span class="badge">Resolvida</span></div>
</div>
</body></html>`

func TestParseListing(t *testing.T) {
	tickets, err := ParseListing(listingHTML)
	require.NoError(t, err)
	require.Len(t, tickets, 2)

	first := tickets[0]
	assert.Equal(t, "1001", first.TicketID)
	assert.Equal(t, "1001", first.Number)
	assert.Equal(t, "Printer down", first.Title)
	assert.Equal(t, "Alta", first.Priority)
	assert.Equal(t, "Em Andamento", first.Situation)
	assert.Equal(t, "20/08/2026 09:15", first.CreatedDate)
	assert.Equal(t, "Ana Souza", first.Assignee)
	assert.Equal(t, "Bruno Lima", first.Requester)
	assert.Equal(t, "4h", first.SLA)
	assert.Equal(t, "21/08/2026 09:15", first.DueDate)
	assert.Equal(t, "Impressão", first.Service)
	assert.Equal(t, "Fila travada no andar 3", first.Description)

	// Second row has no data-request attr, id prefix fallback applies
	second := tickets[1]
	assert.Equal(t, "1002", second.TicketID)
	assert.Equal(t, "1002", second.Number)
	assert.Equal(t, "VPN access", second.Title)
	assert.Equal(t, "Resolvida", second.Situation)
}

func TestParseListing_Empty(t *testing.T) {
	tickets, err := ParseListing("<html><body><p>Nenhuma solicitação</p></body></html>")
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestParseListing_RowWithoutID(t *testing.T) {
	html := `<div name="list-item"><div class="tableless-td solicitacao"><div>No id</div></div></div>`
	tickets, err := ParseListing(html)
	require.NoError(t, err)
	assert.Empty(t, tickets)
}
