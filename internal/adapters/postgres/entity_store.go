package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/automated-charge/internal/domain"
	"github.com/kevin07696/automated-charge/internal/domain/ports"
)

// EntityRepository reads the records a charge request references
type EntityRepository struct {
	db ports.DBTX
}

var (
	_ ports.EntityStore   = (*EntityRepository)(nil)
	_ ports.ChargeHistory = (*EntityRepository)(nil)
)

// NewEntityRepository creates a new entity repository
func NewEntityRepository(db ports.DBTX) *EntityRepository {
	return &EntityRepository{db: db}
}

const getPersonByAliasID = `
SELECT p.id, COALESCE(p.primary_alias_id, 0), p.giving_id, p.first_name, p.last_name, p.email
FROM person_aliases a
JOIN people p ON p.id = a.person_id
WHERE a.id = $1`

// GetPersonByAliasID resolves any alias (including merged ones) to its person
func (r *EntityRepository) GetPersonByAliasID(ctx context.Context, aliasID int64) (*domain.Person, error) {
	var p domain.Person
	err := r.db.QueryRow(ctx, getPersonByAliasID, aliasID).Scan(
		&p.ID, &p.PrimaryAliasID, &p.GivingID, &p.FirstName, &p.LastName, &p.Email,
	)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get person by alias %d: %w", aliasID, err)
	}
	return &p, nil
}

const getGateway = `
SELECT id, name, entity_type, batch_time_offset_seconds, is_active
FROM gateways
WHERE id = $1`

func (r *EntityRepository) GetGateway(ctx context.Context, id int64) (*domain.Gateway, error) {
	var (
		g             domain.Gateway
		offsetSeconds int32
	)
	err := r.db.QueryRow(ctx, getGateway, id).Scan(&g.ID, &g.Name, &g.EntityType, &offsetSeconds, &g.IsActive)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get gateway %d: %w", id, err)
	}
	g.BatchTimeOffset = time.Duration(offsetSeconds) * time.Second
	return &g, nil
}

const getAccounts = `
SELECT id, name, is_active
FROM financial_accounts
WHERE id = ANY($1)`

func (r *EntityRepository) GetAccounts(ctx context.Context, ids []int64) (map[int64]*domain.FinancialAccount, error) {
	out := make(map[int64]*domain.FinancialAccount, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx, getAccounts, ids)
	if err != nil {
		return nil, fmt.Errorf("get accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a domain.FinancialAccount
		if err := rows.Scan(&a.ID, &a.Name, &a.IsActive); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out[a.ID] = &a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

const listSavedPaymentMethods = `
SELECT m.id, m.person_id, m.name, m.reference_number, m.transaction_code,
       m.account_number_masked, m.gateway_person_identifier,
       m.expiration_month, m.expiration_year, m.is_default, m.created_at,
       cur.id, cur.guid, cur.type, cur.value, cur.batch_name_suffix,
       card.id, card.guid, card.type, card.value, card.batch_name_suffix
FROM saved_payment_methods m
LEFT JOIN defined_values cur ON cur.id = m.currency_type_value_id
LEFT JOIN defined_values card ON card.id = m.credit_card_type_value_id
WHERE m.person_id = $1
ORDER BY m.id`

// ListSavedPaymentMethods returns the person's methods ordered by id
func (r *EntityRepository) ListSavedPaymentMethods(ctx context.Context, personID int64) ([]*domain.SavedPaymentMethod, error) {
	rows, err := r.db.Query(ctx, listSavedPaymentMethods, personID)
	if err != nil {
		return nil, fmt.Errorf("list saved payment methods: %w", err)
	}
	defer rows.Close()

	var methods []*domain.SavedPaymentMethod
	for rows.Next() {
		var (
			m          domain.SavedPaymentMethod
			currency   definedValueColumns
			cardType   definedValueColumns
			expMonth   int32
			expYear    int32
			detailCols = []any{
				&m.ID, &m.PersonID, &m.Name, &m.ReferenceNumber, &m.TransactionCode,
				&m.PaymentDetail.AccountNumberMasked, &m.PaymentDetail.GatewayPersonIdentifier,
				&expMonth, &expYear, &m.IsDefault, &m.CreatedAt,
			}
		)
		targets := append(detailCols, currency.targets()...)
		targets = append(targets, cardType.targets()...)
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan saved payment method: %w", err)
		}
		m.PaymentDetail.ExpirationMonth = int(expMonth)
		m.PaymentDetail.ExpirationYear = int(expYear)
		m.PaymentDetail.CurrencyType = currency.value()
		m.PaymentDetail.CreditCardType = cardType.value()
		methods = append(methods, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved payment methods: %w", err)
	}
	return methods, nil
}

const getDefinedValue = `
SELECT id, guid, type, value, batch_name_suffix
FROM defined_values
WHERE type = $1 AND guid = $2`

func (r *EntityRepository) GetDefinedValue(ctx context.Context, valueType domain.DefinedValueType, guid uuid.UUID) (*domain.DefinedValue, error) {
	var (
		v    domain.DefinedValue
		id   pgtype.UUID
		kind string
	)
	err := r.db.QueryRow(ctx, getDefinedValue, string(valueType), pgUUID(guid)).Scan(
		&v.ID, &id, &kind, &v.Value, &v.BatchNameSuffix,
	)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get defined value %s: %w", guid, err)
	}
	v.GUID = uuid.UUID(id.Bytes)
	v.Type = domain.DefinedValueType(kind)
	return &v, nil
}

const aliasIDsByGivingID = `
SELECT a.id
FROM person_aliases a
JOIN people p ON p.id = a.person_id
WHERE p.giving_id = $1
ORDER BY a.id`

func (r *EntityRepository) AliasIDsByGivingID(ctx context.Context, givingID string) ([]int64, error) {
	rows, err := r.db.Query(ctx, aliasIDsByGivingID, givingID)
	if err != nil {
		return nil, fmt.Errorf("alias ids by giving id: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan alias id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const aliasIDsByPersonID = `
SELECT id
FROM person_aliases
WHERE person_id = $1
ORDER BY id`

func (r *EntityRepository) AliasIDsByPersonID(ctx context.Context, personID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, aliasIDsByPersonID, personID)
	if err != nil {
		return nil, fmt.Errorf("alias ids by person %d: %w", personID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan alias id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const findRecentTransaction = `
SELECT id, transaction_code, authorized_person_alias_id, transaction_date_time
FROM transactions
WHERE authorized_person_alias_id = ANY($1)
  AND transaction_date_time >= $2
ORDER BY transaction_date_time DESC, id DESC
LIMIT 1`

// FindRecentTransaction returns only the identifying columns; the guard needs nothing more
func (r *EntityRepository) FindRecentTransaction(ctx context.Context, aliasIDs []int64, since time.Time) (*domain.Transaction, error) {
	if len(aliasIDs) == 0 {
		return nil, nil
	}

	var t domain.Transaction
	err := r.db.QueryRow(ctx, findRecentTransaction, aliasIDs, since.UTC()).Scan(
		&t.ID, &t.TransactionCode, &t.AuthorizedPersonAliasID, &t.TransactionDateTime,
	)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find recent transaction: %w", err)
	}
	return &t, nil
}
