package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-sla/internal/domain"
)

type postgresTicketRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTicketRepository stores each record as a JSONB document next to
// the columns used for filtering.
func NewPostgresTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &postgresTicketRepository{pool: pool}
}

func (r *postgresTicketRepository) Upsert(ctx context.Context, record domain.TicketRecord) error {
	const query = `
        INSERT INTO tickets (ticket_id, team, status, priority_key, creator, assignee,
                             sla_deadline, sla_breached, created_at, updated_at, document)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        ON CONFLICT (ticket_id) DO UPDATE SET
            team=EXCLUDED.team, status=EXCLUDED.status, priority_key=EXCLUDED.priority_key,
            assignee=EXCLUDED.assignee, sla_deadline=EXCLUDED.sla_deadline,
            sla_breached=EXCLUDED.sla_breached, updated_at=EXCLUDED.updated_at,
            document=EXCLUDED.document`
	doc, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode ticket %s: %w", record.Ticket.ID, err)
	}
	t := record.Ticket
	_, err = r.pool.Exec(ctx, query,
		t.ID,
		t.Team,
		t.Status,
		t.PriorityKey,
		t.Creator,
		t.Assignee,
		t.SLADeadline,
		t.SLABreached,
		t.CreatedAt,
		t.UpdatedAt,
		doc,
	)
	return err
}

func (r *postgresTicketRepository) Find(ctx context.Context, filter TicketFilter) ([]domain.TicketRecord, error) {
	base := `SELECT document FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Team != nil {
		args = append(args, *filter.Team)
		clauses = append(clauses, fmt.Sprintf("team=$%d", len(args)))
	}
	if filter.Creator != nil {
		args = append(args, *filter.Creator)
		clauses = append(clauses, fmt.Sprintf("creator=$%d", len(args)))
	}
	if filter.Assignee != nil {
		args = append(args, *filter.Assignee)
		clauses = append(clauses, fmt.Sprintf("assignee=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	query := fmt.Sprintf("%s WHERE %s ORDER BY created_at DESC", base, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.TicketRecord
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var rec domain.TicketRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			return nil, fmt.Errorf("decode ticket document: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *postgresTicketRepository) Delete(ctx context.Context, ticketID string) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE ticket_id=$1`, ticketID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
