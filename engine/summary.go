package engine

import (
	"fmt"

	"github.com/threadline/production-tracker/types"
)

// ProductComplete reports whether every step of the product is
// completed. Computed on read; never stored.
func ProductComplete(p types.ProductEntry) bool {
	for _, st := range p.Steps {
		if st.Status != types.StepCompleted {
			return false
		}
	}
	return true
}

// OrderComplete reports whether every product of the order is complete.
func OrderComplete(o types.ProductionOrder) bool {
	for _, p := range o.Products {
		if !ProductComplete(p) {
			return false
		}
	}
	return true
}

// ProductSummary is the per-product slice of an order summary.
type ProductSummary struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	StepsTotal     int    `json:"steps_total"`
	StepsCompleted int    `json:"steps_completed"`
	// LastStepQuantity is how many units have passed the final step,
	// i.e. how much of the product is fully through production.
	LastStepQuantity int  `json:"last_step_quantity"`
	Complete         bool `json:"complete"`
}

// OrderSummary is the derived completion view of one order, the shape
// the order-detail screen renders.
type OrderSummary struct {
	OrderID  string           `json:"order_id"`
	Code     string           `json:"code"`
	Products []ProductSummary `json:"products"`
	Complete bool             `json:"complete"`
}

// Summarize computes the completion view for an order snapshot.
// Products are listed in lexical id order.
func Summarize(o types.ProductionOrder) OrderSummary {
	s := OrderSummary{OrderID: o.ID, Code: o.Code, Complete: true}
	for _, id := range o.ProductIDs() {
		p := o.Products[id]
		ps := ProductSummary{
			ProductID:  p.ProductID,
			Name:       p.Name,
			Quantity:   p.Quantity,
			StepsTotal: len(p.Steps),
		}
		for _, st := range p.Steps {
			if st.Status == types.StepCompleted {
				ps.StepsCompleted++
			}
		}
		if n := len(p.Steps); n > 0 {
			ps.LastStepQuantity = p.Steps[n-1].CompletedQuantity
		}
		ps.Complete = ps.StepsCompleted == ps.StepsTotal
		if !ps.Complete {
			s.Complete = false
		}
		s.Products = append(s.Products, ps)
	}
	return s
}

// CheckInvariants verifies the step quantity/status invariants across
// the whole order. It is a debugging aid for storage round-trips and
// tests; Apply never produces a snapshot that violates it.
func CheckInvariants(o types.ProductionOrder) error {
	for _, p := range o.Products {
		if p.Quantity <= 0 {
			return fmt.Errorf("%w: product %s ordered quantity %d", ErrInvalidQuantity, p.ProductID, p.Quantity)
		}
		for _, st := range p.Steps {
			if st.CompletedQuantity < 0 || st.CompletedQuantity > p.Quantity {
				return fmt.Errorf("%w: product %s step %d quantity %d", ErrInvalidQuantity, p.ProductID, st.StepID, st.CompletedQuantity)
			}
			if st.Status == types.StepPending && st.CompletedQuantity != 0 {
				return fmt.Errorf("%w: product %s step %d pending with quantity %d", ErrQuantityStatusMismatch, p.ProductID, st.StepID, st.CompletedQuantity)
			}
			if st.Status == types.StepCompleted && st.CompletedQuantity != p.Quantity {
				return fmt.Errorf("%w: product %s step %d completed with quantity %d", ErrQuantityStatusMismatch, p.ProductID, st.StepID, st.CompletedQuantity)
			}
		}
	}
	return nil
}
