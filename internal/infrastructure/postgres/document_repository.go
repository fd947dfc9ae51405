package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Facturacion-api/internal/domain"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	"github.com/jhoicas/Facturacion-api/internal/domain/repository"
	"github.com/jhoicas/Facturacion-api/pkg/fiscal"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

// DocumentRepo documentos (cabecera en documents, líneas en document_lines).
// Usable con pool o tx: las escrituras de varias sentencias abren su propia tx o savepoint.
type DocumentRepo struct {
	q Querier
}

// NewDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDocumentRepository(q Querier) *DocumentRepo {
	return &DocumentRepo{q: q}
}

const documentColumns = `
	id, company_id, type, date, due_date,
	client_id, client_tax_id, client_name, client_address,
	notes, retention, subtotal, tax, withholding, total,
	status, series, sequence, random_code, display_id, iud, issued_at,
	fiscal_status, fiscal_error, fiscal_attempts, fiscal_digest,
	reference_document_id, reference_iud, reason, void_reason,
	created_by, created_at, updated_at`

// Create persiste cabecera y líneas de un borrador nuevo.
func (r *DocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		const q = `
			INSERT INTO documents (
				id, company_id, type, date, due_date,
				client_id, client_tax_id, client_name, client_address,
				notes, retention, subtotal, tax, withholding, total,
				status, reference_document_id, reference_iud, reason,
				created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`
		_, err := tx.Exec(ctx, q,
			doc.ID, doc.CompanyID, string(doc.Type), doc.Date, doc.DueDate,
			nullIfEmpty(doc.Client.ClientID), doc.Client.TaxID, doc.Client.Name, doc.Client.Address,
			doc.Notes, doc.Retention, doc.Subtotal, doc.Tax, doc.Withholding, doc.Total,
			doc.Status, nullIfEmpty(doc.ReferenceDocumentID), doc.ReferenceIUD, doc.Reason,
			doc.CreatedBy, doc.CreatedAt, doc.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return fmt.Errorf("insert document: %w", err)
		}
		return insertLines(ctx, tx, doc.ID, doc.Items)
	})
}

// UpdateDraft reemplaza cabecera y líneas solo si el documento sigue en DRAFT sin reserva.
// Si la condición falla devuelve ErrImmutableDocument, ErrFinalizeInProgress o ErrNotFound.
func (r *DocumentRepo) UpdateDraft(ctx context.Context, doc *entity.Document) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		const q = `
			UPDATE documents
			SET type = $2, date = $3, due_date = $4,
			    client_id = $5, client_tax_id = $6, client_name = $7, client_address = $8,
			    notes = $9, retention = $10,
			    subtotal = $11, tax = $12, withholding = $13, total = $14,
			    reason = $15, updated_at = $16
			WHERE id = $1 AND status = 'DRAFT' AND sequence = 0`
		tag, err := tx.Exec(ctx, q,
			doc.ID, string(doc.Type), doc.Date, doc.DueDate,
			nullIfEmpty(doc.Client.ClientID), doc.Client.TaxID, doc.Client.Name, doc.Client.Address,
			doc.Notes, doc.Retention,
			doc.Subtotal, doc.Tax, doc.Withholding, doc.Total,
			doc.Reason, doc.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update draft: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return r.editConflict(ctx, tx, doc.ID)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM document_lines WHERE document_id = $1`, doc.ID); err != nil {
			return fmt.Errorf("delete document lines: %w", err)
		}
		return insertLines(ctx, tx, doc.ID, doc.Items)
	})
}

// GetByID obtiene el documento con sus líneas; nil, nil si no existe.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	return r.get(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
}

// GetForUpdate como GetByID pero con SELECT … FOR UPDATE: la fila queda bloqueada hasta el fin
// de la transacción. Solo tiene sentido con una pgx.Tx como Querier.
func (r *DocumentRepo) GetForUpdate(ctx context.Context, id string) (*entity.Document, error) {
	return r.get(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1 FOR UPDATE`, id)
}

// SaveReservation fija serie, consecutivo y aleatorio. Solo una vez por borrador.
func (r *DocumentRepo) SaveReservation(ctx context.Context, doc *entity.Document) error {
	const q = `
		UPDATE documents
		SET series = $2, sequence = $3, random_code = $4, updated_at = $5
		WHERE id = $1 AND status = 'DRAFT' AND sequence = 0`
	tag, err := r.q.Exec(ctx, q, doc.ID, doc.Series, doc.Sequence, doc.RandomCode, doc.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: consecutivo %s/%d ya usado", domain.ErrConflict, doc.Series, doc.Sequence)
		}
		return fmt.Errorf("save reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: el documento %s ya tiene reserva", domain.ErrConflict, doc.ID)
	}
	return nil
}

// SaveIssued congela el documento: IUD, identificador visible, totales y estado legal.
func (r *DocumentRepo) SaveIssued(ctx context.Context, doc *entity.Document) error {
	const q = `
		UPDATE documents
		SET status = $2, iud = $3, display_id = $4, issued_at = $5,
		    subtotal = $6, tax = $7, withholding = $8, total = $9,
		    fiscal_status = $10, fiscal_error = $11, updated_at = $12
		WHERE id = $1 AND status = 'DRAFT' AND sequence > 0`
	tag, err := r.q.Exec(ctx, q,
		doc.ID, doc.Status, doc.IUD, doc.DisplayID, doc.IssuedAt,
		doc.Subtotal, doc.Tax, doc.Withholding, doc.Total,
		doc.FiscalStatus, doc.FiscalError, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: IUD %s duplicado", domain.ErrConflict, doc.IUD)
		}
		return fmt.Errorf("save issued: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: el documento %s no es un borrador reservado", domain.ErrConflict, doc.ID)
	}
	return nil
}

// UpdateStatus cambia el estado legal desde ISSUED (pago o anulación).
func (r *DocumentRepo) UpdateStatus(ctx context.Context, doc *entity.Document) error {
	const q = `
		UPDATE documents SET status = $2, void_reason = $3, updated_at = $4
		WHERE id = $1 AND status = 'ISSUED'`
	tag, err := r.q.Exec(ctx, q, doc.ID, doc.Status, doc.VoidReason, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: el documento %s ya no está emitido", domain.ErrConflict, doc.ID)
	}
	return nil
}

// UpdateFiscalStatus escribe solo los campos de transmisión de un documento emitido. La
// condición sobre fiscal_status y fiscal_attempts hace de la escritura un compare-and-swap.
func (r *DocumentRepo) UpdateFiscalStatus(ctx context.Context, doc *entity.Document, prevStatus string, prevAttempts int) error {
	const q = `
		UPDATE documents
		SET fiscal_status = $2, fiscal_error = $3, fiscal_attempts = $4, fiscal_digest = $5, updated_at = $6
		WHERE id = $1 AND status <> 'DRAFT' AND fiscal_status = $7 AND fiscal_attempts = $8`
	tag, err := r.q.Exec(ctx, q,
		doc.ID, doc.FiscalStatus, doc.FiscalError, doc.FiscalAttempts, doc.FiscalDigest, doc.UpdatedAt,
		prevStatus, prevAttempts,
	)
	if err != nil {
		return fmt.Errorf("update fiscal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: el estado fiscal de %s cambió (se esperaba %s/%d)", domain.ErrConflict, doc.ID, prevStatus, prevAttempts)
	}
	return nil
}

// ListByFiscalStatus documentos emitidos con el estado de transmisión dado, los más antiguos primero.
func (r *DocumentRepo) ListByFiscalStatus(ctx context.Context, fiscalStatus string, limit int) ([]*entity.Document, error) {
	q := `SELECT ` + documentColumns + `
		FROM documents
		WHERE fiscal_status = $1 AND status <> 'DRAFT'
		ORDER BY issued_at
		LIMIT $2`
	list, err := r.list(ctx, q, fiscalStatus, limit)
	if err != nil {
		return nil, fmt.Errorf("list by fiscal status: %w", err)
	}
	return list, nil
}

// ListStalePending documentos en PENDING cuya última escritura es anterior a before.
func (r *DocumentRepo) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*entity.Document, error) {
	q := `SELECT ` + documentColumns + `
		FROM documents
		WHERE fiscal_status = 'PENDING' AND status <> 'DRAFT' AND updated_at < $1
		ORDER BY updated_at
		LIMIT $2`
	list, err := r.list(ctx, q, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending: %w", err)
	}
	return list, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

func (r *DocumentRepo) list(ctx context.Context, q string, args ...any) ([]*entity.Document, error) {
	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var list []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan document: %w", err)
		}
		list = append(list, doc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, doc := range list {
		if doc.Items, err = r.lines(ctx, doc.ID); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (r *DocumentRepo) get(ctx context.Context, q, id string) (*entity.Document, error) {
	doc, err := scanDocument(r.q.QueryRow(ctx, q, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	if doc.Items, err = r.lines(ctx, doc.ID); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepo) lines(ctx context.Context, documentID string) ([]entity.LineItem, error) {
	const q = `
		SELECT description, code, quantity, unit_price, tax_rate, total
		FROM document_lines WHERE document_id = $1 ORDER BY position`
	rows, err := r.q.Query(ctx, q, documentID)
	if err != nil {
		return nil, fmt.Errorf("list document lines: %w", err)
	}
	defer rows.Close()
	items := []entity.LineItem{}
	for rows.Next() {
		var it entity.LineItem
		if err := rows.Scan(&it.Description, &it.Code, &it.Quantity, &it.UnitPrice, &it.TaxRate, &it.Total); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// editConflict traduce un UPDATE sin filas afectadas al error de dominio correspondiente.
func (r *DocumentRepo) editConflict(ctx context.Context, q Querier, id string) error {
	var (
		status   string
		sequence int64
	)
	err := q.QueryRow(ctx, `SELECT status, sequence FROM documents WHERE id = $1`, id).Scan(&status, &sequence)
	switch {
	case isNoRows(err):
		return domain.ErrNotFound
	case err != nil:
		return fmt.Errorf("check document state: %w", err)
	case status != entity.StatusDraft:
		return domain.ErrImmutableDocument
	case sequence > 0:
		return domain.ErrFinalizeInProgress
	}
	return domain.ErrConflict
}

func (r *DocumentRepo) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertLines(ctx context.Context, q Querier, documentID string, items []entity.LineItem) error {
	const stmt = `
		INSERT INTO document_lines (document_id, position, description, code, quantity, unit_price, tax_rate, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for i, it := range items {
		if _, err := q.Exec(ctx, stmt,
			documentID, i, it.Description, it.Code, it.Quantity, it.UnitPrice, it.TaxRate, it.Total,
		); err != nil {
			return fmt.Errorf("insert document line %d: %w", i, err)
		}
	}
	return nil
}

func scanDocument(row pgxScanner) (*entity.Document, error) {
	var (
		d         entity.Document
		docType   string
		clientID  *string
		reference *string
	)
	err := row.Scan(
		&d.ID, &d.CompanyID, &docType, &d.Date, &d.DueDate,
		&clientID, &d.Client.TaxID, &d.Client.Name, &d.Client.Address,
		&d.Notes, &d.Retention, &d.Subtotal, &d.Tax, &d.Withholding, &d.Total,
		&d.Status, &d.Series, &d.Sequence, &d.RandomCode, &d.DisplayID, &d.IUD, &d.IssuedAt,
		&d.FiscalStatus, &d.FiscalError, &d.FiscalAttempts, &d.FiscalDigest,
		&reference, &d.ReferenceIUD, &d.Reason, &d.VoidReason,
		&d.CreatedBy, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Type = fiscal.DocumentType(docType)
	d.Client.ClientID = derefStr(clientID)
	d.ReferenceDocumentID = derefStr(reference)
	return &d, nil
}
