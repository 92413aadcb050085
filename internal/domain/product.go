package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Review struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"user"`
	Name      string    `json:"name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

type Product struct {
	ID           string          `json:"_id"`
	UserID       string          `json:"user,omitempty"`
	Name         string          `json:"name"`
	Brand        string          `json:"brand"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	Image        string          `json:"image"`
	Price        decimal.Decimal `json:"price"`
	CountInStock int             `json:"countInStock"`
	Rating       float64         `json:"rating"`
	NumReviews   int             `json:"numReviews"`
	Reviews      []Review        `json:"reviews"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// AddReview appends a review and recomputes NumReviews and Rating together.
// A user may review a product once.
func (p *Product) AddReview(r Review) error {
	for _, existing := range p.Reviews {
		if existing.UserID == r.UserID {
			return ErrAlreadyReviewed
		}
	}
	p.Reviews = append(p.Reviews, r)

	sum := 0
	for _, review := range p.Reviews {
		sum += review.Rating
	}
	p.NumReviews = len(p.Reviews)
	p.Rating = float64(sum) / float64(p.NumReviews)
	return nil
}

// ProductFilter narrows a catalog listing. Page is 1-based.
type ProductFilter struct {
	Keyword  string
	Category string
	Page     int
	PageSize int
}

type ProductPage struct {
	Products []Product `json:"products"`
	Page     int       `json:"page"`
	Pages    int       `json:"pages"`
}

// PageCount is the number of pages needed for total items.
func PageCount(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
