package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segyhp/agriloan-engine/internal/domain"
	customError "github.com/segyhp/agriloan-engine/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const loanColumns = `id, borrower_id, borrower_email, product_id, principal, annual_rate, term, term_unit,
	loan_type, purpose, originated_at, status, paid_amount, version, created_at, updated_at`

const installmentColumns = `id, loan_id, sequence, amount, original_amount, due_date, paid_at, status`

// loanRow is the flat storage shape of domain.Loan without its installments
type loanRow struct {
	ID            uuid.UUID       `db:"id"`
	BorrowerID    uuid.UUID       `db:"borrower_id"`
	BorrowerEmail string          `db:"borrower_email"`
	ProductID     uuid.NullUUID   `db:"product_id"`
	Principal     decimal.Decimal `db:"principal"`
	AnnualRate    decimal.Decimal `db:"annual_rate"`
	Term          int             `db:"term"`
	TermUnit      string          `db:"term_unit"`
	LoanType      string          `db:"loan_type"`
	Purpose       string          `db:"purpose"`
	OriginatedAt  time.Time       `db:"originated_at"`
	Status        string          `db:"status"`
	PaidAmount    decimal.Decimal `db:"paid_amount"`
	Version       int64           `db:"version"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func (r loanRow) toDomain() *domain.Loan {
	loan := &domain.Loan{
		ID:            r.ID,
		BorrowerID:    r.BorrowerID,
		BorrowerEmail: r.BorrowerEmail,
		Terms: domain.LoanTerms{
			Principal:    r.Principal,
			AnnualRate:   r.AnnualRate,
			Term:         r.Term,
			TermUnit:     domain.TermUnit(r.TermUnit),
			Type:         r.LoanType,
			Purpose:      r.Purpose,
			OriginatedAt: r.OriginatedAt,
		},
		Status:     domain.LoanStatus(r.Status),
		PaidAmount: r.PaidAmount,
		Version:    r.Version,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.ProductID.Valid {
		id := r.ProductID.UUID
		loan.ProductID = &id
	}
	return loan
}

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	productID := uuid.NullUUID{}
	if loan.ProductID != nil {
		productID = uuid.NullUUID{UUID: *loan.ProductID, Valid: true}
	}

	query := r.db.Rebind(`
		INSERT INTO loans (` + loanColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, query,
		loan.ID,
		loan.BorrowerID,
		loan.BorrowerEmail,
		productID,
		loan.Terms.Principal,
		loan.Terms.AnnualRate,
		loan.Terms.Term,
		string(loan.Terms.TermUnit),
		loan.Terms.Type,
		loan.Terms.Purpose,
		loan.Terms.OriginatedAt.UTC(),
		string(loan.Status),
		loan.PaidAmount,
		loan.Version,
		loan.CreatedAt.UTC(),
		loan.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}

	insert := r.db.Rebind(`
		INSERT INTO installments (` + installmentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	for _, inst := range loan.Installments {
		_, err = tx.ExecContext(ctx, insert,
			inst.ID,
			loan.ID,
			inst.Sequence,
			inst.Amount,
			inst.OriginalAmount,
			inst.DueDate.UTC(),
			utcPtr(inst.PaidAt),
			string(inst.Status),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *loanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	query := r.db.Rebind(`SELECT ` + loanColumns + ` FROM loans WHERE id = ?`)

	var row loanRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapLoanNotFound(id.String())
		}
		return nil, err
	}

	loans, err := r.attachInstallments(ctx, []loanRow{row})
	if err != nil {
		return nil, err
	}
	return loans[0], nil
}

func (r *loanRepository) Save(ctx context.Context, loan *domain.Loan, expectedVersion int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	update := r.db.Rebind(`
		UPDATE loans
		SET status = ?, paid_amount = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`)
	res, err := tx.ExecContext(ctx, update,
		string(loan.Status),
		loan.PaidAmount,
		expectedVersion+1,
		loan.UpdatedAt.UTC(),
		loan.ID,
		expectedVersion,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		err = tx.GetContext(ctx, &exists, r.db.Rebind(`SELECT COUNT(*) FROM loans WHERE id = ?`), loan.ID)
		if err != nil {
			return err
		}
		if exists == 0 {
			return customError.WrapLoanNotFound(loan.ID.String())
		}
		return customError.WrapConcurrentModification(loan.ID.String())
	}

	instUpdate := r.db.Rebind(`
		UPDATE installments
		SET amount = ?, paid_at = ?, status = ?
		WHERE id = ? AND loan_id = ?
	`)
	for _, inst := range loan.Installments {
		_, err = tx.ExecContext(ctx, instUpdate,
			inst.Amount,
			utcPtr(inst.PaidAt),
			string(inst.Status),
			inst.ID,
			loan.ID,
		)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	loan.Version = expectedVersion + 1
	return nil
}

func (r *loanRepository) ListByBorrower(ctx context.Context, borrowerID uuid.UUID) ([]*domain.Loan, error) {
	query := r.db.Rebind(`SELECT ` + loanColumns + ` FROM loans WHERE borrower_id = ? ORDER BY created_at, id`)

	var rows []loanRow
	if err := r.db.SelectContext(ctx, &rows, query, borrowerID); err != nil {
		return nil, err
	}
	return r.attachInstallments(ctx, rows)
}

// loanListQuery is a List query prepared for one driver. When amountsInSQL is
// false the amount range and pagination are left to the caller.
type loanListQuery struct {
	query        string
	args         []interface{}
	countQuery   string
	countArgs    []interface{}
	amountsInSQL bool
}

func buildLoanListQuery(driver string, filter domain.LoanFilter) loanListQuery {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Type != "" {
		conditions = append(conditions, "LOWER(loan_type) = LOWER(?)")
		args = append(args, filter.Type)
	}

	// sqlite stores amounts as TEXT, so only postgres can compare them numerically
	amountsInSQL := driver == "postgres"
	if amountsInSQL {
		if filter.MinAmount != nil {
			conditions = append(conditions, "principal >= ?")
			args = append(args, *filter.MinAmount)
		}
		if filter.MaxAmount != nil {
			conditions = append(conditions, "principal <= ?")
			args = append(args, *filter.MaxAmount)
		}
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	bind := sqlx.BindType(driver)
	q := loanListQuery{amountsInSQL: amountsInSQL}
	query := `SELECT ` + loanColumns + ` FROM loans` + where + ` ORDER BY created_at DESC, id`

	if !amountsInSQL {
		q.query = sqlx.Rebind(bind, query)
		q.args = args
		return q
	}

	q.countQuery = sqlx.Rebind(bind, `SELECT COUNT(*) FROM loans`+where)
	q.countArgs = append([]interface{}(nil), args...)
	if filter.Limit > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, (page-1)*filter.Limit)
	}
	q.query = sqlx.Rebind(bind, query)
	q.args = args
	return q
}

func (r *loanRepository) List(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, int, error) {
	q := buildLoanListQuery(r.db.DriverName(), filter)

	var rows []loanRow
	if err := r.db.SelectContext(ctx, &rows, q.query, q.args...); err != nil {
		return nil, 0, err
	}

	if q.amountsInSQL {
		var total int
		if err := r.db.GetContext(ctx, &total, q.countQuery, q.countArgs...); err != nil {
			return nil, 0, err
		}
		loans, err := r.attachInstallments(ctx, rows)
		if err != nil {
			return nil, 0, err
		}
		return loans, total, nil
	}

	matched := rows[:0]
	for _, row := range rows {
		if filter.MinAmount != nil && row.Principal.LessThan(*filter.MinAmount) {
			continue
		}
		if filter.MaxAmount != nil && row.Principal.GreaterThan(*filter.MaxAmount) {
			continue
		}
		matched = append(matched, row)
	}

	total := len(matched)
	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit > 0 {
		start := (page - 1) * limit
		if start > total {
			start = total
		}
		end := start + limit
		if end > total {
			end = total
		}
		matched = matched[start:end]
	}

	loans, err := r.attachInstallments(ctx, matched)
	if err != nil {
		return nil, 0, err
	}
	return loans, total, nil
}

func (r *loanRepository) ListAll(ctx context.Context) ([]*domain.Loan, error) {
	var rows []loanRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+loanColumns+` FROM loans ORDER BY created_at, id`); err != nil {
		return nil, err
	}
	return r.attachInstallments(ctx, rows)
}

func (r *loanRepository) ListWithInstallmentsDueBetween(ctx context.Context, from, to time.Time) ([]*domain.Loan, error) {
	query := r.db.Rebind(`
		SELECT ` + loanColumns + ` FROM loans
		WHERE status = ? AND id IN (
			SELECT loan_id FROM installments
			WHERE status = ? AND due_date >= ? AND due_date < ?
		)
		ORDER BY created_at, id
	`)

	var rows []loanRow
	err := r.db.SelectContext(ctx, &rows, query,
		string(domain.LoanStatusApproved),
		string(domain.InstallmentStatusNotPaid),
		from.UTC(),
		to.UTC(),
	)
	if err != nil {
		return nil, err
	}
	return r.attachInstallments(ctx, rows)
}

// attachInstallments loads the installments of every row in one query and
// returns the aggregates in row order.
func (r *loanRepository) attachInstallments(ctx context.Context, rows []loanRow) ([]*domain.Loan, error) {
	loans := make([]*domain.Loan, 0, len(rows))
	if len(rows) == 0 {
		return loans, nil
	}

	ids := make([]uuid.UUID, 0, len(rows))
	byID := make(map[uuid.UUID]*domain.Loan, len(rows))
	for _, row := range rows {
		loan := row.toDomain()
		loan.Installments = []domain.Installment{}
		loans = append(loans, loan)
		ids = append(ids, row.ID)
		byID[row.ID] = loan
	}

	query, args, err := sqlx.In(`SELECT `+installmentColumns+` FROM installments WHERE loan_id IN (?) ORDER BY loan_id, sequence`, ids)
	if err != nil {
		return nil, fmt.Errorf("build installment query: %w", err)
	}

	var installments []domain.Installment
	if err := r.db.SelectContext(ctx, &installments, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}

	for _, inst := range installments {
		if loan, ok := byID[inst.LoanID]; ok {
			loan.Installments = append(loan.Installments, inst)
		}
	}
	return loans, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
