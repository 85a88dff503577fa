package inventory

import (
	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// ToMovementResponse convierte un movimiento al DTO de salida.
func ToMovementResponse(m *entity.StockMovement) dto.MovementResponse {
	return dto.MovementResponse{
		ID:               m.ID,
		ProductID:        m.ProductID,
		MovementType:     string(m.Type),
		Quantity:         m.Quantity,
		ReferenceType:    string(m.ReferenceType),
		ReferenceID:      m.ReferenceID,
		PreviousQuantity: m.PreviousQuantity,
		NewQuantity:      m.NewQuantity,
		ReversesID:       m.ReversesID,
		Notes:            m.Notes,
		CreatedBy:        m.CreatedBy,
		CreatedAt:        m.CreatedAt,
	}
}

// ToMovementResponses convierte una lista; nunca devuelve nil.
func ToMovementResponses(list []*entity.StockMovement) []dto.MovementResponse {
	out := make([]dto.MovementResponse, 0, len(list))
	for _, m := range list {
		out = append(out, ToMovementResponse(m))
	}
	return out
}
