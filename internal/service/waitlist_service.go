package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"studyspace/internal/domain"
	"studyspace/internal/email"
	"studyspace/internal/repository"
)

// WaitlistService maneja la lista de espera de cabinas ocupadas.
type WaitlistService struct {
	logger      *zap.Logger
	waitlist    repository.WaitlistRepository
	users       repository.UserRepository
	emailSender email.Sender
}

var (
	ErrCabinNotFound      = errors.New("cabin not found")
	ErrCabinAvailable     = errors.New("cabin is available")
	ErrAlreadyWaitlisted  = errors.New("already in waitlist for this cabin")
	ErrWaitlistEntryGone  = errors.New("waitlist entry not found")
	ErrWaitlistBadRequest = errors.New("waitlist invalid input")
)

func NewWaitlistService(logger *zap.Logger, waitlist repository.WaitlistRepository, users repository.UserRepository, emailSender email.Sender) *WaitlistService {
	return &WaitlistService{
		logger:      logger,
		waitlist:    waitlist,
		users:       users,
		emailSender: emailSender,
	}
}

// Join anota al usuario en la lista de espera de una cabina ocupada. Una
// cabina disponible se reserva directo, no se espera.
func (s *WaitlistService) Join(ctx context.Context, userID, cabinID, readingRoomID string) (domain.WaitlistEntry, error) {
	if s == nil || s.waitlist == nil {
		return domain.WaitlistEntry{}, errors.New("waitlist service not configured")
	}

	cabinID = strings.TrimSpace(cabinID)
	readingRoomID = strings.TrimSpace(readingRoomID)
	if cabinID == "" || readingRoomID == "" {
		return domain.WaitlistEntry{}, ErrWaitlistBadRequest
	}

	cabin, err := s.waitlist.GetCabin(ctx, cabinID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.WaitlistEntry{}, ErrCabinNotFound
		}
		return domain.WaitlistEntry{}, err
	}
	if cabin.Status == domain.CabinAvailable {
		return domain.WaitlistEntry{}, ErrCabinAvailable
	}

	if _, err := s.waitlist.FindByUserAndCabin(ctx, userID, cabinID); err == nil {
		return domain.WaitlistEntry{}, ErrAlreadyWaitlisted
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.WaitlistEntry{}, err
	}

	entry := domain.WaitlistEntry{
		ID:            uuid.NewString(),
		UserID:        userID,
		CabinID:       cabinID,
		ReadingRoomID: readingRoomID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.waitlist.CreateEntry(ctx, entry); err != nil {
		return domain.WaitlistEntry{}, err
	}
	return entry, nil
}

func (s *WaitlistService) ListMine(ctx context.Context, userID string) ([]domain.WaitlistEntry, error) {
	if s == nil || s.waitlist == nil {
		return nil, errors.New("waitlist service not configured")
	}
	return s.waitlist.ListForUser(ctx, userID)
}

func (s *WaitlistService) Leave(ctx context.Context, entryID, userID string) error {
	if s == nil || s.waitlist == nil {
		return errors.New("waitlist service not configured")
	}
	if err := s.waitlist.Delete(ctx, entryID, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrWaitlistEntryGone
		}
		return err
	}
	return nil
}

// ReleaseCabin libera la cabina y avisa a los anotados por correo, en orden
// de llegada. Los avisos son best-effort: un correo fallido no corta la
// liberacion ni el resto de los avisos.
func (s *WaitlistService) ReleaseCabin(ctx context.Context, cabinID string) (int, error) {
	if s == nil || s.waitlist == nil {
		return 0, errors.New("waitlist service not configured")
	}

	cabin, err := s.waitlist.GetCabin(ctx, cabinID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrCabinNotFound
		}
		return 0, err
	}

	if err := s.waitlist.ReleaseCabin(ctx, cabinID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrCabinNotFound
		}
		return 0, err
	}

	entries, err := s.waitlist.ListForCabin(ctx, cabinID)
	if err != nil {
		return 0, err
	}

	notified := 0
	for _, entry := range entries {
		user, err := s.users.GetByID(ctx, entry.UserID)
		if err != nil {
			continue
		}
		if s.emailSender != nil {
			if err := s.emailSender.SendCabinAvailable(ctx, user.Email, user.Name, cabin.Number, cabin.ReadingRoomID); err != nil {
				if s.logger != nil {
					s.logger.Warn("cabin available email failed",
						zap.Error(err),
						zap.String("user_id", user.ID),
						zap.String("cabin_id", cabinID),
					)
				}
				continue
			}
		}
		notified++
	}
	return notified, nil
}
