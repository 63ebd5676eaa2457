package portal

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ternarybob/vigilo/internal/models"
)

// situationLabels maps the portal's situation codes to human labels
var situationLabels = map[int]string{
	1: "Em Andamento",
	2: "Suspensa",
	3: "Cancelada",
	4: "Resolvida",
	5: "Reaberta",
	6: "Fechada",
}

// priorityLabels maps the portal's priority codes to human labels
var priorityLabels = map[int]string{
	1: "Crítica",
	2: "Alta",
	3: "Média",
	4: "Baixa",
	5: "Baixa",
}

// SituationLabel converts a situation code to its label. Unknown codes
// degrade to a generic label instead of erroring; zero means absent.
func SituationLabel(code int) string {
	if code == 0 {
		return ""
	}
	if label, ok := situationLabels[code]; ok {
		return label
	}
	return fmt.Sprintf("Situação %d", code)
}

// PriorityLabel converts a priority code to its label
func PriorityLabel(code int) string {
	if code == 0 {
		return ""
	}
	if label, ok := priorityLabels[code]; ok {
		return label
	}
	return fmt.Sprintf("Prioridade %d", code)
}

// RawTicket is one record as the portal's list endpoint returns it
type RawTicket struct {
	ID          int64  `json:"id"`
	Titulo      string `json:"titulo"`
	Tipo        string `json:"tipo"`
	Prioridade  int    `json:"prioridade"`
	Situacao    int    `json:"situacao"`
	DataCriacao string `json:"dataCriacao"`
	DataLimite  string `json:"dataLimite"`
	Responsavel string `json:"responsavel"`
	Solicitante string `json:"solicitante"`
	TaskSlaTime string `json:"taskSlaTime"`
	NomeServico string `json:"nomeServico"`
	Descricao   string `json:"descricao"`

	NomeGrupoAtual string `json:"nomeGrupoAtual"`
	IDGrupoAtual   int    `json:"idGrupoAtual"`

	StatusFluxoID        int    `json:"statusFluxoId"`
	StatusFluxoNome      string `json:"statusFluxoNome"`
	StatusFluxoDescricao string `json:"statusFluxoDescricao"`
	StatusFluxoCorFundo  string `json:"statusFluxoCorFundo"`
	StatusFluxoCorTexto  string `json:"statusFluxoCorTexto"`

	// Payload preserves the record exactly as received
	Payload json.RawMessage `json:"-"`
}

// Organize maps a raw API record into the local ticket shape for one owner
func Organize(ownerID string, raw RawTicket, now time.Time) models.Ticket {
	title := raw.Titulo
	if title == "" {
		title = raw.Tipo
	}

	id := strconv.FormatInt(raw.ID, 10)

	return models.Ticket{
		OwnerID:       ownerID,
		TicketID:      id,
		Number:        id,
		Title:         title,
		Kind:          raw.Tipo,
		Priority:      PriorityLabel(raw.Prioridade),
		Situation:     SituationLabel(raw.Situacao),
		SituationCode: raw.Situacao,
		CreatedDate:   raw.DataCriacao,
		DueDate:       raw.DataLimite,
		Assignee:      raw.Responsavel,
		Requester:     raw.Solicitante,
		SLA:           raw.TaskSlaTime,
		Service:       raw.NomeServico,
		Description:   raw.Descricao,
		Group:         raw.NomeGrupoAtual,
		GroupID:       raw.IDGrupoAtual,
		FlowStatus: models.FlowStatus{
			ID:          raw.StatusFluxoID,
			Name:        raw.StatusFluxoNome,
			Description: raw.StatusFluxoDescricao,
			Background:  raw.StatusFluxoCorFundo,
			Foreground:  raw.StatusFluxoCorTexto,
		},
		Raw:       raw.Payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
