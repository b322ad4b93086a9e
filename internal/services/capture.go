package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/learncircle/backend/internal/ai"
	"github.com/learncircle/backend/internal/models"
	"github.com/learncircle/backend/pkg/logger"
	"gorm.io/gorm"
)

// MaxAudioBytes caps uploaded meeting audio at 25 MB, the transcription
// service's own payload limit.
const MaxAudioBytes = 25 << 20

const audioURLExpiry = 15 * time.Minute

// BlobStore is the durable file store holding raw audio artifacts.
type BlobStore interface {
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, objectName string) (io.ReadCloser, error)
	Delete(ctx context.Context, objectName string) error
	PresignedGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// Transcriber turns audio bytes into a plain-text transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// ChatCompleter produces a text completion for an ordered message list.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []ai.Message) (string, error)
}

// CaptureService runs the audio -> transcript -> minutes pipeline for a
// meeting's recording.
type CaptureService struct {
	DB          *gorm.DB
	Blobs       BlobStore
	Transcriber Transcriber
	Chat        ChatCompleter
}

func NewCaptureService(db *gorm.DB, blobs BlobStore, transcriber Transcriber, chat ChatCompleter) *CaptureService {
	return &CaptureService{DB: db, Blobs: blobs, Transcriber: transcriber, Chat: chat}
}

// IngestAudio stores the audio artifact, transcribes it and upserts the
// meeting's recording with the transcript and artifact reference. Both the
// transcription call and the database upsert roll the stored artifact back on
// failure so no orphaned blob remains.
func (s *CaptureService) IngestAudio(ctx context.Context, meetingID uuid.UUID, audio []byte, filename, contentType string, uploaderID uuid.UUID) (*models.Recording, error) {
	if int64(len(audio)) > MaxAudioBytes {
		return nil, ErrPayloadTooLarge
	}
	if len(audio) == 0 {
		return nil, validationError("audio file is empty")
	}

	objectName := fmt.Sprintf("meeting_%s_%d%s", meetingID, time.Now().Unix(), filepath.Ext(filename))
	if err := s.Blobs.Upload(ctx, objectName, bytes.NewReader(audio), int64(len(audio)), contentType); err != nil {
		return nil, dependencyError("failed storing audio artifact", err)
	}

	transcript, err := s.Transcriber.Transcribe(ctx, audio, filename)
	if err != nil {
		_ = s.Blobs.Delete(ctx, objectName)
		return nil, dependencyError("transcription failed", err)
	}

	recording, previousObject, err := s.upsertRecording(ctx, meetingID, &objectName, transcript, uploaderID)
	if err != nil {
		_ = s.Blobs.Delete(ctx, objectName)
		return nil, err
	}

	// The superseded artifact no longer belongs to any recording row.
	if previousObject != nil && *previousObject != objectName {
		_ = s.Blobs.Delete(ctx, *previousObject)
	}

	logger.InfoWithUser(uploaderID.String(), "audio_transcribed", map[string]interface{}{
		"meeting_id":  meetingID.String(),
		"object_name": objectName,
		"audio_bytes": len(audio),
	})
	return recording, nil
}

// SaveTranscript upserts a manually entered transcript, leaving any stored
// audio artifact untouched.
func (s *CaptureService) SaveTranscript(ctx context.Context, meetingID uuid.UUID, transcript string, createdBy uuid.UUID) (*models.Recording, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, validationError("transcript is required")
	}
	recording, _, err := s.upsertRecording(ctx, meetingID, nil, transcript, createdBy)
	return recording, err
}

func (s *CaptureService) upsertRecording(ctx context.Context, meetingID uuid.UUID, audioObject *string, transcript string, createdBy uuid.UUID) (*models.Recording, *string, error) {
	var recording models.Recording
	var previousObject *string

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&recording, "meeting_id = ?", meetingID).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			recording = models.Recording{
				MeetingID:   meetingID,
				AudioObject: audioObject,
				Transcript:  transcript,
				CreatedByID: createdBy,
			}
			return tx.Create(&recording).Error
		case err != nil:
			return err
		}

		previousObject = recording.AudioObject
		updates := map[string]interface{}{"transcript": transcript}
		if audioObject != nil {
			updates["audio_object"] = *audioObject
			recording.AudioObject = audioObject
		}
		recording.Transcript = transcript
		return tx.Model(&models.Recording{}).Where("id = ?", recording.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &recording, previousObject, nil
}

const minutesPrompt = `You prepare meeting minutes for a small learning group.
From the transcript below, produce minutes with exactly these sections:

## Summary
## Key topics
## Decisions
## Carry-over items

Keep the wording plain and friendly. Transcript:

`

// GenerateMinutes asks the summarization collaborator for structured minutes.
// The result is returned, not persisted; callers preview and then commit via
// SaveMinutes.
func (s *CaptureService) GenerateMinutes(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", ErrNoTranscript
	}

	minutes, err := s.Chat.Complete(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: "You write clear, structured meeting minutes."},
		{Role: ai.RoleUser, Content: minutesPrompt + transcript},
	})
	if err != nil {
		return "", dependencyError("minutes generation failed", err)
	}
	return minutes, nil
}

// SaveMinutes replaces the stored summary for the meeting's recording.
func (s *CaptureService) SaveMinutes(ctx context.Context, meetingID uuid.UUID, summary string) (*models.Recording, error) {
	if strings.TrimSpace(summary) == "" {
		return nil, validationError("minutes text is required")
	}

	var recording models.Recording
	if err := s.DB.WithContext(ctx).First(&recording, "meeting_id = ?", meetingID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNoRecording
		}
		return nil, err
	}

	if err := s.DB.WithContext(ctx).Model(&models.Recording{}).
		Where("id = ?", recording.ID).
		Update("summary", summary).Error; err != nil {
		return nil, err
	}
	recording.Summary = &summary
	return &recording, nil
}

// Recording returns the meeting's recording with creator metadata.
func (s *CaptureService) Recording(ctx context.Context, meetingID uuid.UUID) (*models.Recording, error) {
	var recording models.Recording
	err := s.DB.WithContext(ctx).Preload("CreatedBy").First(&recording, "meeting_id = ?", meetingID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNoRecording
		}
		return nil, err
	}
	return &recording, nil
}

// AudioStream opens the stored audio artifact for playback and returns it
// with its object name. The caller closes the reader.
func (s *CaptureService) AudioStream(ctx context.Context, meetingID uuid.UUID) (io.ReadCloser, string, error) {
	recording, err := s.Recording(ctx, meetingID)
	if err != nil {
		return nil, "", err
	}
	if recording.AudioObject == nil {
		return nil, "", notFoundError("no audio uploaded for this meeting")
	}
	reader, err := s.Blobs.Download(ctx, *recording.AudioObject)
	if err != nil {
		return nil, "", dependencyError("failed fetching audio artifact", err)
	}
	return reader, *recording.AudioObject, nil
}

// AudioURL returns a short-lived playback URL for the stored audio artifact.
func (s *CaptureService) AudioURL(ctx context.Context, meetingID uuid.UUID) (string, error) {
	recording, err := s.Recording(ctx, meetingID)
	if err != nil {
		return "", err
	}
	if recording.AudioObject == nil {
		return "", notFoundError("no audio uploaded for this meeting")
	}
	url, err := s.Blobs.PresignedGetURL(ctx, *recording.AudioObject, audioURLExpiry)
	if err != nil {
		return "", dependencyError("failed signing audio url", err)
	}
	return url, nil
}
