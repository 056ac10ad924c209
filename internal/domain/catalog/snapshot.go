package catalog

import (
	"fmt"
	"time"
)

// Snapshot is an immutable view of the catalog taken at one load.
// Products and clients keep the order in which upstream returned them.
type Snapshot struct {
	products     []Product
	clients      []Client
	productIndex map[ProductID]int
	clientIndex  map[ClientID]int
	loadedAt     time.Time
}

// NewSnapshot validates and indexes a catalog load
func NewSnapshot(products []Product, clients []Client, loadedAt time.Time) (*Snapshot, error) {
	s := &Snapshot{
		products:     make([]Product, 0, len(products)),
		clients:      make([]Client, 0, len(clients)),
		productIndex: make(map[ProductID]int, len(products)),
		clientIndex:  make(map[ClientID]int, len(clients)),
		loadedAt:     loadedAt,
	}

	for _, p := range products {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, exists := s.productIndex[p.ID]; exists {
			return nil, fmt.Errorf("product %d: %w", p.ID, ErrDuplicateProduct)
		}
		s.productIndex[p.ID] = len(s.products)
		s.products = append(s.products, p)
	}

	for _, c := range clients {
		if err := c.validate(); err != nil {
			return nil, err
		}
		if _, exists := s.clientIndex[c.ID]; exists {
			return nil, fmt.Errorf("client %d: %w", c.ID, ErrDuplicateClient)
		}
		s.clientIndex[c.ID] = len(s.clients)
		s.clients = append(s.clients, c)
	}

	return s, nil
}

// EmptySnapshot returns a snapshot with no products and no clients
func EmptySnapshot() *Snapshot {
	s, _ := NewSnapshot(nil, nil, time.Time{})
	return s
}

// Product looks up a product by id
func (s *Snapshot) Product(id ProductID) (Product, bool) {
	i, ok := s.productIndex[id]
	if !ok {
		return Product{}, false
	}
	return s.products[i], true
}

// Client looks up a client by id
func (s *Snapshot) Client(id ClientID) (Client, bool) {
	i, ok := s.clientIndex[id]
	if !ok {
		return Client{}, false
	}
	return s.clients[i], true
}

// Products returns a copy of all products
func (s *Snapshot) Products() []Product {
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}

// Clients returns a copy of all clients
func (s *Snapshot) Clients() []Client {
	out := make([]Client, len(s.clients))
	copy(out, s.clients)
	return out
}

// ProductCount returns the number of products
func (s *Snapshot) ProductCount() int {
	return len(s.products)
}

// ClientCount returns the number of clients
func (s *Snapshot) ClientCount() int {
	return len(s.clients)
}

// LoadedAt returns the time the snapshot was taken
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// LowStock returns the products whose available stock is below threshold
func (s *Snapshot) LowStock(threshold int) []Product {
	var out []Product
	for _, p := range s.products {
		if p.IsLowStock(threshold) {
			out = append(out, p)
		}
	}
	return out
}
