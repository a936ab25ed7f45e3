package database

import (
	"fmt"
	"time"
)

// SubtitleRow is one archived subtitle delivery.
type SubtitleRow struct {
	ID             int       `json:"id"`
	MeetingID      string    `json:"meetingId"`
	SpeakerID      string    `json:"speakerId"`
	SpeakerName    string    `json:"speakerName"`
	OriginalText   string    `json:"originalText"`
	TranslatedText string    `json:"translatedText"`
	SourceLanguage string    `json:"sourceLanguage"`
	TargetLanguage string    `json:"targetLanguage"`
	SpokenAt       time.Time `json:"spokenAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

// InsertSubtitle archives one delivered subtitle.
func InsertSubtitle(row SubtitleRow) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	_, err := DB.Exec(`
		INSERT INTO subtitles
			(meeting_id, speaker_id, speaker_name, original_text,
			 translated_text, source_language, target_language, spoken_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		row.MeetingID,
		row.SpeakerID,
		row.SpeakerName,
		row.OriginalText,
		row.TranslatedText,
		row.SourceLanguage,
		row.TargetLanguage,
		row.SpokenAt,
	)
	if err != nil {
		return fmt.Errorf("insert subtitle: %w", err)
	}
	return nil
}

// ListMeetingSubtitles returns a meeting's archived subtitles in spoken
// order, optionally filtered to one target language.
func ListMeetingSubtitles(meetingID, targetLanguage string, limit int) ([]SubtitleRow, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}

	query := `
		SELECT id, meeting_id, speaker_id, speaker_name, original_text,
		       translated_text, source_language, target_language,
		       spoken_at, created_at
		FROM subtitles
		WHERE meeting_id = $1`
	args := []interface{}{meetingID}
	if targetLanguage != "" {
		query += ` AND target_language = $2`
		args = append(args, targetLanguage)
	}
	query += fmt.Sprintf(` ORDER BY spoken_at ASC LIMIT %d`, limit)

	rows, err := DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subtitles: %w", err)
	}
	defer rows.Close()

	var out []SubtitleRow
	for rows.Next() {
		var r SubtitleRow
		if err := rows.Scan(
			&r.ID, &r.MeetingID, &r.SpeakerID, &r.SpeakerName,
			&r.OriginalText, &r.TranslatedText, &r.SourceLanguage,
			&r.TargetLanguage, &r.SpokenAt, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan subtitle: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteMeetingSubtitles drops a meeting's archive when the meeting is torn
// down.
func DeleteMeetingSubtitles(meetingID string) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}
	res, err := DB.Exec(`DELETE FROM subtitles WHERE meeting_id = $1`, meetingID)
	if err != nil {
		return 0, fmt.Errorf("delete subtitles: %w", err)
	}
	return res.RowsAffected()
}
