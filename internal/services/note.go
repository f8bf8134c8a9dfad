package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/noteguard/backend/internal/models"
	"gorm.io/gorm"
)

var ErrNoteNotFound = errors.New("note not found")

// NoteService implements the per-user notes store. Every operation is
// scoped by the owner's user id; a note belonging to someone else is
// indistinguishable from a missing one.
type NoteService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewNoteService(db *gorm.DB) *NoteService {
	return &NoteService{db: db, now: time.Now}
}

func (s *NoteService) Create(ctx context.Context, userID, title, content string) (*models.Note, error) {
	note := models.Note{
		ID:      uuid.NewString(),
		UserID:  userID,
		Title:   title,
		Content: content,
	}
	if err := s.db.WithContext(ctx).Create(&note).Error; err != nil {
		return nil, storageErr(err)
	}
	return &note, nil
}

func (s *NoteService) GetByID(ctx context.Context, id, userID string) (*models.Note, error) {
	var note models.Note
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&note).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, storageErr(err)
	}
	return &note, nil
}

func (s *NoteService) ListByUser(ctx context.Context, userID string) ([]models.Note, error) {
	var notes []models.Note
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&notes).Error
	if err != nil {
		return nil, storageErr(err)
	}
	return notes, nil
}

func (s *NoteService) Update(ctx context.Context, id, userID, title, content string) (*models.Note, error) {
	note, err := s.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	note.Title = title
	note.Content = content
	note.UpdatedAt = s.now()
	if err := s.db.WithContext(ctx).Save(note).Error; err != nil {
		return nil, storageErr(err)
	}
	return note, nil
}

func (s *NoteService) Delete(ctx context.Context, id, userID string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Note{})
	if res.Error != nil {
		return storageErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNoteNotFound
	}
	return nil
}
