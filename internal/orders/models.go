package orders

import "time"

type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type Line struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

type Order struct {
	ID        string    `json:"id"`
	Customer  Customer  `json:"customer"`
	Items     []Line    `json:"items"`
	Status    Status    `json:"status"` // lihat status.go
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PlaceRequest is the decoded body of a new order.
type PlaceRequest struct {
	Customer Customer `json:"customer"`
	Items    []Line   `json:"items"`
}
