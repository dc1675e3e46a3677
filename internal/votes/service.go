package votes

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/myeljoud/lireddit-server/internal/models"
)

var noOpLogger = zap.NewNop()

// ServiceConfig carries the dependencies of the vote service.
type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service applies per-user directional votes on posts and keeps the
// post's points column equal to the sum of its vote rows.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errors.New("votes: database handle is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{db: cfg.Database, logger: logger}, nil
}

// CastVote records userID's vote on postID. rawValue is normalized to a
// unit direction: any positive input counts as an upvote, any negative
// input as a downvote, and zero is rejected with ErrInvalidValue.
//
// The vote row and the points adjustment are written in one
// transaction. A repeated identical vote is a no-op that still reports
// success; a changed vote is updated in place and the points column
// moves by the delta between old and new value. If a concurrent first
// vote by the same user wins the insert, the losing transaction is
// retried once and lands on the update path.
func (s *Service) CastVote(ctx context.Context, userID, postID, rawValue int) error {
	if userID <= 0 {
		return ErrUnauthenticated
	}

	value, err := normalizeValue(rawValue)
	if err != nil {
		return err
	}

	err = s.apply(ctx, userID, postID, value)
	if errors.Is(err, errWriteConflict) {
		s.logger.Debug("vote lost a race, retrying against committed state",
			zap.Int("user_id", userID),
			zap.Int("post_id", postID))
		err = s.apply(ctx, userID, postID, value)
	}
	if errors.Is(err, errWriteConflict) {
		// Two conflicts in a row means the same user is hammering this
		// post from several connections at once. Give up rather than
		// loop; the vote that won is a valid outcome.
		return fmt.Errorf("%w: write conflict persisted after retry", ErrLedgerWrite)
	}

	return err
}

// Statuses reports userID's current vote on each of postIDs. Posts the
// user has not voted on are absent from the result, and an anonymous
// viewer gets an empty map.
func (s *Service) Statuses(ctx context.Context, userID int, postIDs []int) (map[int]int, error) {
	statuses := make(map[int]int, len(postIDs))
	if userID <= 0 || len(postIDs) == 0 {
		return statuses, nil
	}

	var rows []models.Vote
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("votes: loading statuses: %v", err)
	}

	for _, row := range rows {
		statuses[row.PostID] = row.Value
	}
	return statuses, nil
}

func (s *Service) apply(ctx context.Context, userID, postID, value int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id").First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPostNotFound
			}
			return s.ledgerError("looking up post", err)
		}

		var existing models.Vote
		err := tx.Where("user_id = ? AND post_id = ?", userID, postID).First(&existing).Error

		switch {
		case err == nil:
			if existing.Value == value {
				// Duplicate vote: nothing to do, still a success.
				return nil
			}
			// The update is conditional on the value we read, so a
			// concurrent flip by the same user cannot leave a stale
			// delta behind: the loser matches zero rows and retries.
			delta := value - existing.Value
			res := tx.Model(&models.Vote{}).
				Where("user_id = ? AND post_id = ? AND value = ?", userID, postID, existing.Value).
				Update("value", value)
			if res.Error != nil {
				return s.ledgerError("updating vote", res.Error)
			}
			if res.RowsAffected == 0 {
				return errWriteConflict
			}
			return s.adjustPoints(tx, postID, delta)

		case errors.Is(err, gorm.ErrRecordNotFound):
			vote := models.Vote{UserID: userID, PostID: postID, Value: value}
			if err := tx.Create(&vote).Error; err != nil {
				if isUniqueViolation(err) {
					return errWriteConflict
				}
				return s.ledgerError("inserting vote", err)
			}
			return s.adjustPoints(tx, postID, value)

		default:
			return s.ledgerError("loading vote", err)
		}
	})
}

// adjustPoints moves the post's points column by delta inside the
// caller's transaction. The arithmetic happens in the database so
// concurrent votes by different users serialize only on this row.
func (s *Service) adjustPoints(tx *gorm.DB, postID, delta int) error {
	res := tx.Model(&models.Post{}).
		Where("id = ?", postID).
		UpdateColumn("points", gorm.Expr("points + ?", delta))
	if res.Error != nil {
		return s.ledgerError("adjusting points", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (s *Service) ledgerError(action string, cause error) error {
	s.logger.Error("vote ledger write failed",
		zap.String("action", action),
		zap.Error(cause))
	return fmt.Errorf("%w: %s: %v", ErrLedgerWrite, action, cause)
}

func normalizeValue(raw int) (int, error) {
	switch {
	case raw > 0:
		return 1, nil
	case raw < 0:
		return -1, nil
	default:
		return 0, ErrInvalidValue
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
