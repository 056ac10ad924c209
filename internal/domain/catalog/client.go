package catalog

import (
	"fmt"
	"strings"
)

// ClientID is the upstream identifier of a client
type ClientID int64

// String returns the decimal form of the id
func (id ClientID) String() string {
	return fmt.Sprintf("%d", int64(id))
}

// Client is a buyer that can be attached to an order
type Client struct {
	ID    ClientID
	Name  string
	CPF   string // individual taxpayer id
	CNPJ  string // company taxpayer id
	State string
	Phone string
}

// IsCompany returns true when the client carries a company tax id
func (c Client) IsCompany() bool {
	return strings.TrimSpace(c.CNPJ) != ""
}

// TaxID returns the CNPJ for companies and the CPF otherwise
func (c Client) TaxID() string {
	if c.IsCompany() {
		return c.CNPJ
	}
	return c.CPF
}

func (c Client) validate() error {
	if c.ID <= 0 {
		return fmt.Errorf("client %q: %w", c.Name, ErrInvalidClientID)
	}
	return nil
}
