package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/conorfennell/studyset/internal/domain"
	"github.com/conorfennell/studyset/internal/srs"
)

// AddStudySet stores a generated payload as a new study set owned by userID.
// The set and all of its keywords, flashcards and questions are written in one
// transaction; every flashcard starts with the initial review schedule.
func (db *DB) AddStudySet(ctx context.Context, userID string, p *domain.GeneratedPayload, sourceHash string) (string, error) {
	return db.addStudySet(ctx, userID, p, sourceHash, nil)
}

// AddStudySetFromMaterial stores a study set generated from source material
// and records the material in the same transaction. m.StudySetID is ignored.
func (db *DB) AddStudySetFromMaterial(ctx context.Context, userID string, p *domain.GeneratedPayload, m Material) (string, error) {
	return db.addStudySet(ctx, userID, p, m.Hash, &m)
}

func (db *DB) addStudySet(ctx context.Context, userID string, p *domain.GeneratedPayload, sourceHash string, m *Material) (string, error) {
	if err := domain.ValidatePayload(p); err != nil {
		return "", err
	}

	outline, err := json.Marshal(nonNilOutline(p.Outline))
	if err != nil {
		return "", fmt.Errorf("failed to encode outline: %w", err)
	}

	setID, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate study set id: %w", err)
	}
	now := db.now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO study_sets (id, user_id, title, summary, outline, source_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, setID, userID, p.Title, p.SummaryText, string(outline), sourceHash, now); err != nil {
		return "", fmt.Errorf("failed to insert study set: %w", err)
	}

	for i, k := range p.Keywords {
		id, err := gonanoid.New()
		if err != nil {
			return "", fmt.Errorf("failed to generate keyword id: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO keywords (id, study_set_id, position, term, definition, source_sentence, ai_score)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, setID, i, k.Term, k.Definition, k.SourceSentence, k.ImportanceScore); err != nil {
			return "", fmt.Errorf("failed to insert keyword %q: %w", k.Term, err)
		}
	}

	initial := srs.InitialState(now)
	for i, f := range p.Flashcards {
		id, err := gonanoid.New()
		if err != nil {
			return "", fmt.Errorf("failed to generate flashcard id: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO flashcards (id, study_set_id, position, front, back, edited, interval, ease_factor, next_review_date)
			VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)
		`, id, setID, i, f.Front, f.Back, initial.Interval, initial.EaseFactor, initial.NextReviewDate); err != nil {
			return "", fmt.Errorf("failed to insert flashcard %d: %w", i, err)
		}
	}

	for i, q := range p.PracticeQuestions {
		id, err := gonanoid.New()
		if err != nil {
			return "", fmt.Errorf("failed to generate question id: %w", err)
		}
		options, err := json.Marshal(nonNilStrings(q.Options))
		if err != nil {
			return "", fmt.Errorf("failed to encode options: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO practice_questions (id, study_set_id, position, bloom_level, kind, question, options, correct_answer, rubric)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, setID, i, q.Level.String(), string(q.Kind), q.Question, string(options), q.CorrectAnswer, q.Rubric); err != nil {
			return "", fmt.Errorf("failed to insert question %d: %w", i, err)
		}
	}

	if m != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO materials (hash, source_id, study_set_id, path, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, m.Hash, m.SourceID, setID, m.Path, now); err != nil {
			return "", fmt.Errorf("failed to insert material %s: %w", m.Hash, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit study set: %w", err)
	}
	return setID, nil
}

// GetStudySetsForUser lists a user's study sets, newest first. The children
// are not loaded.
func (db *DB) GetStudySetsForUser(ctx context.Context, userID string) ([]domain.StudySet, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, user_id, title, summary, outline, source_hash, created_at
		FROM study_sets WHERE user_id = ?
		ORDER BY created_at DESC, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get study sets for user %s: %w", userID, err)
	}
	defer rows.Close()

	sets := []domain.StudySet{}
	for rows.Next() {
		s, err := scanStudySet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read study sets: %w", err)
	}
	return sets, nil
}

// GetStudySetDetails loads a study set with all its children. It returns
// (nil, nil) if the set does not exist.
func (db *DB) GetStudySetDetails(ctx context.Context, id string) (*domain.Details, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, user_id, title, summary, outline, source_hash, created_at
		FROM study_sets WHERE id = ?
	`, id)
	set, err := scanStudySet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	d := &domain.Details{StudySet: *set}
	if d.Keywords, err = db.keywords(ctx, id); err != nil {
		return nil, err
	}
	if d.Flashcards, err = db.flashcards(ctx, id); err != nil {
		return nil, err
	}
	if d.Questions, err = db.questions(ctx, id); err != nil {
		return nil, err
	}
	return d, nil
}

// GetFlashcards loads the flashcards of a study set in generation order.
func (db *DB) GetFlashcards(ctx context.Context, setID string) ([]domain.Flashcard, error) {
	return db.flashcards(ctx, setID)
}

// GetQuestions loads the practice questions of a study set in generation order.
func (db *DB) GetQuestions(ctx context.Context, setID string) ([]domain.PracticeQuestion, error) {
	return db.questions(ctx, setID)
}

// GetStudySetOwner returns the owner of a study set, or ErrNotFound.
func (db *DB) GetStudySetOwner(ctx context.Context, id string) (string, error) {
	var owner string
	err := db.conn.QueryRowContext(ctx, `SELECT user_id FROM study_sets WHERE id = ?`, id).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("study set %s: %w", id, ErrNotFound)
		}
		return "", fmt.Errorf("failed to find owner of study set %s: %w", id, err)
	}
	return owner, nil
}

// UpdateSummaryText replaces the summary of a study set.
func (db *DB) UpdateSummaryText(ctx context.Context, id, text string) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE study_sets SET summary = ? WHERE id = ?`, text, id)
	if err != nil {
		return fmt.Errorf("failed to update summary for study set %s: %w", id, err)
	}
	return expectOne(res, "study set "+id)
}

// UpdateKeywordScore records userID's importance score for a keyword. Scores
// from other users are left as they are.
func (db *DB) UpdateKeywordScore(ctx context.Context, setID, keywordID, userID string, score int) error {
	if err := domain.Var(score, "min=1,max=5"); err != nil {
		return fmt.Errorf("%w: got %d", ErrInvalidScore, score)
	}

	var exists int
	err := db.conn.QueryRowContext(ctx, `
		SELECT 1 FROM keywords WHERE id = ? AND study_set_id = ?
	`, keywordID, setID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("keyword %s in study set %s: %w", keywordID, setID, ErrNotFound)
		}
		return fmt.Errorf("failed to find keyword %s: %w", keywordID, err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO keyword_scores (keyword_id, user_id, score, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(keyword_id, user_id) DO UPDATE SET
			score = excluded.score,
			updated_at = excluded.updated_at
	`, keywordID, userID, score, db.now())
	if err != nil {
		return fmt.Errorf("failed to update score for keyword %s: %w", keywordID, err)
	}
	return nil
}

// UpdateFlashcardSRS stores the schedule computed by a review. Due dates
// past srs.MaxDueDate are stored as srs.MaxDueDate.
func (db *DB) UpdateFlashcardSRS(ctx context.Context, setID, cardID string, s domain.SRSData) error {
	due := s.NextReviewDate.UTC()
	if due.After(srs.MaxDueDate) {
		due = srs.MaxDueDate
	}
	res, err := db.conn.ExecContext(ctx, `
		UPDATE flashcards
		SET interval = ?, ease_factor = ?, next_review_date = ?
		WHERE id = ? AND study_set_id = ?
	`, s.Interval, s.EaseFactor, due, cardID, setID)
	if err != nil {
		return fmt.Errorf("failed to update schedule for flashcard %s: %w", cardID, err)
	}
	return expectOne(res, "flashcard "+cardID)
}

// UpdateFlashcardContent rewrites a card's text and marks it as edited. The
// review schedule is kept.
func (db *DB) UpdateFlashcardContent(ctx context.Context, setID, cardID, front, back string) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE flashcards SET front = ?, back = ?, edited = 1
		WHERE id = ? AND study_set_id = ?
	`, front, back, cardID, setID)
	if err != nil {
		return fmt.Errorf("failed to update flashcard %s: %w", cardID, err)
	}
	return expectOne(res, "flashcard "+cardID)
}

// DeleteStudySet removes a study set owned by userID together with its children.
func (db *DB) DeleteStudySet(ctx context.Context, id, userID string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM study_sets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete study set %s: %w", id, err)
	}
	return expectOne(res, "study set "+id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStudySet(row scanner) (*domain.StudySet, error) {
	var (
		s       domain.StudySet
		outline string
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.Title, &s.Summary, &outline, &s.SourceHash, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan study set: %w", err)
	}
	if err := json.Unmarshal([]byte(outline), &s.Outline); err != nil {
		return nil, fmt.Errorf("failed to decode outline of study set %s: %w", s.ID, err)
	}
	return &s, nil
}

func (db *DB) keywords(ctx context.Context, setID string) ([]domain.Keyword, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, study_set_id, term, definition, source_sentence, ai_score
		FROM keywords WHERE study_set_id = ?
		ORDER BY position
	`, setID)
	if err != nil {
		return nil, fmt.Errorf("failed to get keywords for study set %s: %w", setID, err)
	}
	defer rows.Close()

	keywords := []domain.Keyword{}
	index := map[string]int{}
	for rows.Next() {
		var k domain.Keyword
		if err := rows.Scan(&k.ID, &k.StudySetID, &k.Term, &k.Definition, &k.SourceSentence, &k.AIScore); err != nil {
			return nil, fmt.Errorf("failed to scan keyword row: %w", err)
		}
		k.UserScores = map[string]int{}
		index[k.ID] = len(keywords)
		keywords = append(keywords, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read keywords: %w", err)
	}
	rows.Close()

	scores, err := db.conn.QueryContext(ctx, `
		SELECT s.keyword_id, s.user_id, s.score
		FROM keyword_scores s JOIN keywords k ON k.id = s.keyword_id
		WHERE k.study_set_id = ?
	`, setID)
	if err != nil {
		return nil, fmt.Errorf("failed to get keyword scores for study set %s: %w", setID, err)
	}
	defer scores.Close()

	for scores.Next() {
		var (
			keywordID, userID string
			score             int
		)
		if err := scores.Scan(&keywordID, &userID, &score); err != nil {
			return nil, fmt.Errorf("failed to scan keyword score row: %w", err)
		}
		if i, ok := index[keywordID]; ok {
			keywords[i].UserScores[userID] = score
		}
	}
	if err := scores.Err(); err != nil {
		return nil, fmt.Errorf("failed to read keyword scores: %w", err)
	}
	return keywords, nil
}

func (db *DB) flashcards(ctx context.Context, setID string) ([]domain.Flashcard, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, study_set_id, position, front, back, edited, interval, ease_factor, next_review_date
		FROM flashcards WHERE study_set_id = ?
		ORDER BY position
	`, setID)
	if err != nil {
		return nil, fmt.Errorf("failed to get flashcards for study set %s: %w", setID, err)
	}
	defer rows.Close()

	cards := []domain.Flashcard{}
	for rows.Next() {
		var c domain.Flashcard
		if err := rows.Scan(&c.ID, &c.StudySetID, &c.Position, &c.Front, &c.Back, &c.Edited,
			&c.SRS.Interval, &c.SRS.EaseFactor, &c.SRS.NextReviewDate); err != nil {
			return nil, fmt.Errorf("failed to scan flashcard row: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read flashcards: %w", err)
	}
	return cards, nil
}

func (db *DB) questions(ctx context.Context, setID string) ([]domain.PracticeQuestion, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, study_set_id, position, bloom_level, kind, question, options, correct_answer, rubric
		FROM practice_questions WHERE study_set_id = ?
		ORDER BY position
	`, setID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions for study set %s: %w", setID, err)
	}
	defer rows.Close()

	questions := []domain.PracticeQuestion{}
	for rows.Next() {
		var (
			q              domain.PracticeQuestion
			level, options string
			kind           string
		)
		if err := rows.Scan(&q.ID, &q.StudySetID, &q.Position, &level, &kind, &q.Question, &options, &q.CorrectAnswer, &q.Rubric); err != nil {
			return nil, fmt.Errorf("failed to scan question row: %w", err)
		}
		if q.Level, err = domain.ParseBloomLevel(level); err != nil {
			return nil, fmt.Errorf("question %s: %w", q.ID, err)
		}
		q.Kind = domain.QuestionKind(kind)
		if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
			return nil, fmt.Errorf("failed to decode options of question %s: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}
	return questions, nil
}

func nonNilOutline(o []domain.OutlineNode) []domain.OutlineNode {
	if o == nil {
		return []domain.OutlineNode{}
	}
	return o
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
