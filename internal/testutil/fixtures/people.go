package fixtures

import (
	"strconv"

	"github.com/kevin07696/automated-charge/internal/domain"
)

// PersonBuilder provides fluent API for building test payers.
type PersonBuilder struct {
	person *domain.Person
}

// NewPerson creates a payer whose primary alias id is id*10.
func NewPerson(id int64) *PersonBuilder {
	return &PersonBuilder{
		person: &domain.Person{
			ID:             id,
			PrimaryAliasID: id * 10,
			GivingID:       "G" + strconv.FormatInt(id, 10),
			FirstName:      "Ted",
			LastName:       "Decker",
			Email:          "ted.decker@example.com",
		},
	}
}

func (b *PersonBuilder) WithPrimaryAliasID(aliasID int64) *PersonBuilder {
	b.person.PrimaryAliasID = aliasID
	return b
}

func (b *PersonBuilder) WithGivingID(givingID string) *PersonBuilder {
	b.person.GivingID = givingID
	return b
}

func (b *PersonBuilder) WithEmail(email string) *PersonBuilder {
	b.person.Email = email
	return b
}

func (b *PersonBuilder) Build() *domain.Person {
	p := *b.person
	return &p
}
