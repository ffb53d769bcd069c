package models

import "time"

// Position net holding of one symbol
type Position struct {
	Symbol   string  `json:"symbol" db:"ticker"`
	Quantity float64 `json:"quantity" db:"shares"`
}

// Transaction a signed buy/sell entry
type Transaction struct {
	ID        int64     `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Symbol    string    `json:"symbol" db:"ticker"`
	Quantity  float64   `json:"quantity" db:"shares"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Close one daily closing price
type Close struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// Headline a scraped news headline
type Headline struct {
	Text      string    `json:"text"`
	URL       string    `json:"url,omitempty"`
	FetchedAt time.Time `json:"fetchedAt"`
}
