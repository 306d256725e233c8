package task

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"todochat/app/core/orchestrator/db"
)

// updatableFields is the closed set of columns Update may touch.
var updatableFields = map[string]string{
	"description": "description",
	"due_date":    "due_date",
	"priority":    "priority",
	"category":    "category",
	"status":      "status",
}

var sortColumns = map[string]string{
	"created":     "created_at",
	"due_date":    "due_date",
	"priority":    "priority",
	"description": "description",
}

// Store persists todos. Every operation is scoped by user id; a task id
// that does not belong to the user surfaces as sql.ErrNoRows, the same
// signal as a missing row.
type Store struct {
	db *db.DB
}

func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

func (s *Store) Create(ctx context.Context, userID, description, dueDate, priority, category string) (Todo, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Todo{}, fmt.Errorf("user_id is required")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		description = "Untitled task"
	}
	if priority == "" {
		priority = "medium"
	}
	if category == "" {
		category = "general"
	}
	now := time.Now().Unix()
	query := `INSERT INTO todos (user_id, description, due_date, priority, category, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, 'pending', ?, ?)`
	res, err := s.db.Conn().ExecContext(ctx, query, userID, description, nullable(dueDate), priority, category, now, now)
	if err != nil {
		return Todo{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Todo{}, err
	}
	return Todo{
		ID:          id,
		UserID:      userID,
		Description: description,
		DueDate:     dueDate,
		Priority:    priority,
		Category:    category,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *Store) Get(ctx context.Context, userID string, id int64) (Todo, error) {
	query := selectColumns + ` FROM todos WHERE id = ? AND user_id = ?`
	return scanOne(s.db.Conn().QueryRowContext(ctx, query, id, userID))
}

const selectColumns = `SELECT id, user_id, description, COALESCE(due_date, ''), priority, category, status, created_at, updated_at, COALESCE(completed_at, 0)`

func (s *Store) List(ctx context.Context, userID string, filter Filter) ([]Todo, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	var (
		where = []string{"user_id = ?"}
		args  = []interface{}{userID}
	)
	switch strings.ToLower(strings.TrimSpace(filter.Status)) {
	case "", "all":
	case StatusPending, StatusCompleted:
		where = append(where, "status = ?")
		args = append(args, strings.ToLower(filter.Status))
	default:
		return nil, fmt.Errorf("invalid status: %s", filter.Status)
	}
	if c := strings.TrimSpace(filter.Category); c != "" {
		where = append(where, "category = ?")
		args = append(args, c)
	}
	if p := strings.TrimSpace(filter.Priority); p != "" {
		where = append(where, "priority = ?")
		args = append(args, p)
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		where = append(where, "description LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(q)+"%")
	}

	column, ok := sortColumns[strings.TrimSpace(filter.SortBy)]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if strings.EqualFold(filter.SortOrder, "desc") {
		direction = "DESC"
	}

	query := fmt.Sprintf("%s FROM todos WHERE %s ORDER BY %s %s, id ASC", selectColumns, strings.Join(where, " AND "), column, direction)
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Todo
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// Update applies a field map to an owned task. Unknown fields are
// rejected; an empty map is a no-op error so callers can tell the user
// nothing was understood.
func (s *Store) Update(ctx context.Context, userID string, id int64, updates map[string]string) (Todo, error) {
	if len(updates) == 0 {
		return Todo{}, fmt.Errorf("no updates provided")
	}
	var (
		sets = make([]string, 0, len(updates)+1)
		args = make([]interface{}, 0, len(updates)+3)
	)
	for field, value := range updates {
		column, ok := updatableFields[field]
		if !ok {
			return Todo{}, fmt.Errorf("unknown field: %s", field)
		}
		if field == "status" && value != StatusPending && value != StatusCompleted {
			return Todo{}, fmt.Errorf("invalid status: %s", value)
		}
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().Unix(), id, userID)

	query := fmt.Sprintf("UPDATE todos SET %s WHERE id = ? AND user_id = ?", strings.Join(sets, ", "))
	res, err := s.db.Conn().ExecContext(ctx, query, args...)
	if err != nil {
		return Todo{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Todo{}, err
	}
	if affected == 0 {
		return Todo{}, sql.ErrNoRows
	}
	return s.Get(ctx, userID, id)
}

func (s *Store) Complete(ctx context.Context, userID string, id int64) (Todo, error) {
	now := time.Now().Unix()
	query := `UPDATE todos SET status = 'completed', completed_at = ?, updated_at = ? WHERE id = ? AND user_id = ?`
	res, err := s.db.Conn().ExecContext(ctx, query, now, now, id, userID)
	if err != nil {
		return Todo{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Todo{}, err
	}
	if affected == 0 {
		return Todo{}, sql.ErrNoRows
	}
	return s.Get(ctx, userID, id)
}

func (s *Store) Delete(ctx context.Context, userID string, id int64) error {
	res, err := s.db.Conn().ExecContext(ctx, `DELETE FROM todos WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByDescription matches an owned pending-first task whose description
// contains the given text, newest first. Used to resolve task references
// when no numeric id was given.
func (s *Store) FindByDescription(ctx context.Context, userID, text string) (Todo, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Todo{}, sql.ErrNoRows
	}
	query := selectColumns + ` FROM todos WHERE user_id = ? AND description LIKE ? ESCAPE '\'
ORDER BY CASE status WHEN 'pending' THEN 0 ELSE 1 END, updated_at DESC LIMIT 1`
	return scanOne(s.db.Conn().QueryRowContext(ctx, query, userID, "%"+escapeLike(text)+"%"))
}

func (s *Store) CountByStatus(ctx context.Context, userID string) (Counts, error) {
	query := `SELECT status, COUNT(*) FROM todos WHERE user_id = ? GROUP BY status`
	rows, err := s.db.Conn().QueryContext(ctx, query, userID)
	if err != nil {
		return Counts{}, err
	}
	defer rows.Close()

	var counts Counts
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return Counts{}, err
		}
		switch status {
		case StatusPending:
			counts.Pending = n
		case StatusCompleted:
			counts.Completed = n
		}
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTodo(r rowScanner) (Todo, error) {
	var t Todo
	err := r.Scan(&t.ID, &t.UserID, &t.Description, &t.DueDate, &t.Priority, &t.Category, &t.Status, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt)
	return t, err
}

func scanOne(row *sql.Row) (Todo, error) {
	t, err := scanTodo(row)
	if err != nil {
		return Todo{}, err
	}
	return t, nil
}

func nullable(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
