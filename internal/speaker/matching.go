package speaker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/lumenprima/mediaplane/internal/database"
	"github.com/lumenprima/mediaplane/internal/model"
	"github.com/lumenprima/mediaplane/internal/vectorindex"
)

// Confidence tier thresholds for cosine similarity against a speaker profile.
const (
	HighThreshold   = 0.75
	MediumThreshold = 0.50
)

// Tier classifies a cosine similarity score against the two thresholds.
type Tier int

const (
	TierNone Tier = iota
	TierMedium
	TierHigh
)

// ClassifyScore buckets score into TierHigh (>= HIGH), TierMedium
// (>= MEDIUM), or TierNone — pure, so it's testable without a vector
// index.
func ClassifyScore(score float64) Tier {
	switch {
	case score >= HighThreshold:
		return TierHigh
	case score >= MediumThreshold:
		return TierMedium
	default:
		return TierNone
	}
}

// Engine wires the embedding pipeline, cross-file matching, retroactive
// labeling, and profile consolidation onto the Relational Store and
// Vector Index.
type Engine struct {
	db       *database.DB
	index    vectorindex.Index
	embedder Embedder
	log      zerolog.Logger

	// consolidateGroup collapses concurrent ConsolidateFull calls for the
	// same profile id into a single recompute — multiple speakers can
	// trigger a recompute of the same profile within the same beat tick,
	// and there's no benefit to running it twice back to back.
	consolidateGroup singleflight.Group
}

func NewEngine(db *database.DB, index vectorindex.Index, embedder Embedder, log zerolog.Logger) *Engine {
	return &Engine{db: db, index: index, embedder: embedder, log: log}
}

// ProcessFile runs the full embedding pipeline for a file's speakers
// ( steps 1-4), then triggers cross-file matching for each
// newly embedded speaker.
func (e *Engine) ProcessFile(ctx context.Context, mediaFileID int64) error {
	segments, err := e.db.ListTranscriptSegments(ctx, mediaFileID)
	if err != nil {
		return fmt.Errorf("speaker: list segments: %w", err)
	}
	speakers, err := e.db.ListSpeakersByMediaFile(ctx, mediaFileID)
	if err != nil {
		return fmt.Errorf("speaker: list speakers: %w", err)
	}
	byID := make(map[int64]model.Speaker, len(speakers))
	for _, s := range speakers {
		byID[s.ID] = s
	}

	grouped := SelectSegments(segments)
	for speakerID, segs := range grouped {
		sp, ok := byID[speakerID]
		if !ok {
			continue
		}

		vectors := make([][]float64, 0, len(segs))
		for _, seg := range segs {
			raw, err := e.embedder.Embed(ctx, mediaFileID, seg.StartTime, seg.EndTime)
			if err != nil {
				e.log.Error().Err(err).Int64("speaker_id", speakerID).Msg("speaker: embedding extraction failed")
				continue
			}
			vectors = append(vectors, float32ToFloat64(raw))
		}
		if len(vectors) == 0 {
			continue
		}

		mean, err := AggregateMean(vectors)
		if err != nil {
			e.log.Error().Err(err).Int64("speaker_id", speakerID).Msg("speaker: aggregation failed")
			continue
		}

		if err := e.index.Upsert(ctx, vectorindex.Document{
			DocumentType: vectorindex.DocSpeakerEmbedding,
			DocumentID:   speakerID,
			UserID:       sp.UserID,
			Vector:       mean,
		}); err != nil {
			e.log.Error().Err(err).Int64("speaker_id", speakerID).Msg("speaker: embedding upsert failed")
			continue
		}

		if err := e.CrossFileMatch(ctx, sp, mean); err != nil {
			e.log.Error().Err(err).Int64("speaker_id", speakerID).Msg("speaker: cross-file matching failed")
		}
	}
	return nil
}

// CrossFileMatch performs the kNN query within the user's scope
// (excluding newSpeaker itself, since it was just upserted) and applies
// match/auto-apply rules.
func (e *Engine) CrossFileMatch(ctx context.Context, newSpeaker model.Speaker, embedding []float64) error {
	count, err := e.index.Probe(ctx, vectorindex.DocSpeakerEmbedding, newSpeaker.UserID)
	if err != nil {
		return fmt.Errorf("speaker: probe: %w", err)
	}
	if count <= 1 {
		return nil // only the speaker just inserted; nothing to match against
	}

	hits, err := e.index.KNN(ctx, vectorindex.DocSpeakerEmbedding, newSpeaker.UserID, embedding, 0)
	if err != nil {
		return fmt.Errorf("speaker: knn: %w", err)
	}

	for _, hit := range hits {
		if hit.DocumentID == newSpeaker.ID {
			continue
		}
		if err := e.applyMatch(ctx, newSpeaker, hit.DocumentID, hit.Score); err != nil {
			e.log.Error().Err(err).
				Int64("speaker_id", newSpeaker.ID).
				Int64("candidate_id", hit.DocumentID).
				Msg("speaker: failed to apply match")
		}
	}
	return nil
}

// applyMatch handles one kNN hit: below MEDIUM is discarded; MEDIUM and
// above records a SpeakerMatch and a suggested_name; HIGH against a
// verified, named speaker auto-applies the label.
func (e *Engine) applyMatch(ctx context.Context, newSpeaker model.Speaker, otherID int64, score float64) error {
	tier := ClassifyScore(score)
	if tier == TierNone {
		return nil
	}

	if err := e.upsertMatch(ctx, newSpeaker.ID, otherID, score); err != nil {
		return err
	}

	other, err := e.getSpeaker(ctx, otherID)
	if err != nil {
		return err
	}

	if other.DisplayName != "" {
		if err := e.db.SetSuggestedName(ctx, newSpeaker.ID, other.DisplayName, score); err != nil {
			return err
		}
	}

	if tier == TierHigh && other.Verified && other.DisplayName != "" {
		if err := e.db.VerifySpeaker(ctx, newSpeaker.ID, other.DisplayName); err != nil {
			return err
		}
		if other.ProfileID != nil {
			if err := e.db.AssignSpeakerProfile(ctx, newSpeaker.ID, *other.ProfileID); err != nil {
				return err
			}
			if err := e.ConsolidateIncremental(ctx, *other.ProfileID, newSpeaker.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) getSpeaker(ctx context.Context, speakerID int64) (*model.Speaker, error) {
	return e.db.GetSpeaker(ctx, speakerID)
}

// upsertMatch builds an ordered SpeakerMatch and writes it with
// max-confidence semantics.
func (e *Engine) upsertMatch(ctx context.Context, a, b int64, score float64) error {
	m, ok := model.NewSpeakerMatch(a, b, score, time.Now())
	if !ok {
		return nil // a == b, nothing to record
	}

	existing, err := e.db.ListSpeakerMatchesFor(ctx, m.Speaker1ID)
	if err != nil {
		return err
	}
	for _, ex := range existing {
		if ex.Speaker1ID == m.Speaker1ID && ex.Speaker2ID == m.Speaker2ID && ex.Confidence > m.Confidence {
			m.Confidence = ex.Confidence
		}
	}
	return e.db.UpsertSpeakerMatch(ctx, m)
}

// RetroactiveLabel applies retroactive labeling rule when a
// user assigns displayName to speakerID: every other speaker of the same
// user (excluding verified speakers under a different name) is compared
// against this speaker's stored embedding.
func (e *Engine) RetroactiveLabel(ctx context.Context, speakerID int64, displayName string) error {
	target, err := e.getSpeaker(ctx, speakerID)
	if err != nil {
		return fmt.Errorf("speaker: load target: %w", err)
	}
	if err := e.db.VerifySpeaker(ctx, speakerID, displayName); err != nil {
		return fmt.Errorf("speaker: verify: %w", err)
	}

	doc, err := e.index.Get(ctx, vectorindex.DocSpeakerEmbedding, speakerID)
	if err != nil {
		return fmt.Errorf("speaker: load embedding: %w", err)
	}

	hits, err := e.index.KNN(ctx, vectorindex.DocSpeakerEmbedding, target.UserID, doc.Vector, 0)
	if err != nil {
		return fmt.Errorf("speaker: knn: %w", err)
	}

	for _, hit := range hits {
		if hit.DocumentID == speakerID {
			continue
		}
		other, err := e.getSpeaker(ctx, hit.DocumentID)
		if err != nil {
			e.log.Error().Err(err).Int64("speaker_id", hit.DocumentID).Msg("speaker: failed to load candidate")
			continue
		}
		if other.Verified && !strings.EqualFold(other.DisplayName, displayName) {
			continue // verified under a different name: excluded from the comparison set
		}

		tier := ClassifyScore(hit.Score)
		if tier == TierNone {
			continue
		}
		if err := e.upsertMatch(ctx, speakerID, other.ID, hit.Score); err != nil {
			e.log.Error().Err(err).Msg("speaker: failed to upsert retroactive match")
			continue
		}

		if tier == TierHigh {
			if err := e.db.VerifySpeaker(ctx, other.ID, displayName); err != nil {
				e.log.Error().Err(err).Int64("speaker_id", other.ID).Msg("speaker: failed to auto-apply retroactive label")
			}
		} else {
			if err := e.db.SetSuggestedName(ctx, other.ID, displayName, hit.Score); err != nil {
				e.log.Error().Err(err).Int64("speaker_id", other.ID).Msg("speaker: failed to set suggested name")
			}
		}
	}

	return e.AutoCreateProfile(ctx, target.UserID, speakerID, displayName)
}

// AutoCreateProfile implements auto-profile-creation rule:
// find or create a SpeakerProfile matching displayName case-insensitively,
// link speakerID to it, and run incremental consolidation.
func (e *Engine) AutoCreateProfile(ctx context.Context, userID, speakerID int64, displayName string) error {
	profiles, err := e.db.ListSpeakerProfiles(ctx, userID)
	if err != nil {
		return fmt.Errorf("speaker: list profiles: %w", err)
	}

	var profileID int64
	found := false
	for _, p := range profiles {
		if strings.EqualFold(p.Name, displayName) {
			profileID = p.ID
			found = true
			break
		}
	}
	if !found {
		id, err := e.db.CreateSpeakerProfile(ctx, userID, displayName)
		if err != nil {
			return fmt.Errorf("speaker: create profile: %w", err)
		}
		profileID = id
	}

	if err := e.db.AssignSpeakerProfile(ctx, speakerID, profileID); err != nil {
		return fmt.Errorf("speaker: assign profile: %w", err)
	}
	return e.ConsolidateIncremental(ctx, profileID, speakerID)
}

// ConsolidateIncremental adds one speaker's embedding into a profile's
// centroid without recomputing from every member ( incremental
// mode).
func (e *Engine) ConsolidateIncremental(ctx context.Context, profileID, speakerID int64) error {
	profile, err := e.db.GetSpeakerProfile(ctx, profileID)
	if err != nil {
		return fmt.Errorf("speaker: load profile: %w", err)
	}
	speakerDoc, err := e.index.Get(ctx, vectorindex.DocSpeakerEmbedding, speakerID)
	if err != nil {
		return fmt.Errorf("speaker: load speaker embedding: %w", err)
	}

	newCount := profile.EmbeddingCount + 1
	centroid := speakerDoc.Vector
	if existing, err := e.index.Get(ctx, vectorindex.DocProfileEmbedding, profileID); err == nil && existing != nil {
		centroid, err = weightedMean(existing.Vector, profile.EmbeddingCount, speakerDoc.Vector)
		if err != nil {
			return fmt.Errorf("speaker: weighted mean: %w", err)
		}
	}

	if err := e.index.Upsert(ctx, vectorindex.Document{
		DocumentType: vectorindex.DocProfileEmbedding,
		DocumentID:   profileID,
		UserID:       profile.UserID,
		Vector:       centroid,
	}); err != nil {
		return fmt.Errorf("speaker: upsert profile embedding: %w", err)
	}
	return e.db.TouchSpeakerProfileEmbedding(ctx, profileID, newCount)
}

// ConsolidateFull recomputes a profile's centroid from scratch over
// every member speaker — used on speaker removal or a batch update
//.
func (e *Engine) ConsolidateFull(ctx context.Context, profileID int64) error {
	_, err, _ := e.consolidateGroup.Do(strconv.FormatInt(profileID, 10), func() (interface{}, error) {
		return nil, e.consolidateFull(ctx, profileID)
	})
	return err
}

func (e *Engine) consolidateFull(ctx context.Context, profileID int64) error {
	profile, err := e.db.GetSpeakerProfile(ctx, profileID)
	if err != nil {
		return fmt.Errorf("speaker: load profile: %w", err)
	}
	members, err := e.db.ListSpeakersByProfile(ctx, profileID)
	if err != nil {
		return fmt.Errorf("speaker: list members: %w", err)
	}
	if len(members) == 0 {
		return nil
	}

	vectors := make([][]float64, 0, len(members))
	for _, m := range members {
		doc, err := e.index.Get(ctx, vectorindex.DocSpeakerEmbedding, m.ID)
		if err != nil {
			e.log.Error().Err(err).Int64("speaker_id", m.ID).Msg("speaker: missing embedding during full recompute")
			continue
		}
		vectors = append(vectors, doc.Vector)
	}
	if len(vectors) == 0 {
		return nil
	}

	mean, err := AggregateMean(vectors)
	if err != nil {
		return fmt.Errorf("speaker: aggregate: %w", err)
	}

	if err := e.index.Upsert(ctx, vectorindex.Document{
		DocumentType: vectorindex.DocProfileEmbedding,
		DocumentID:   profileID,
		UserID:       profile.UserID,
		Vector:       mean,
	}); err != nil {
		return fmt.Errorf("speaker: upsert profile embedding: %w", err)
	}
	return e.db.TouchSpeakerProfileEmbedding(ctx, profileID, len(members))
}

// MatchAgainstProfiles is the optional pre-step run during processing: a
// kNN query against document_type=profile, but only after probing for
// any candidates at all (mandatory pre-probe rule — some
// backends reject kNN on an empty filter set, and Postgres would just
// waste a scan ranking zero rows).
func (e *Engine) MatchAgainstProfiles(ctx context.Context, userID int64, embedding []float64) ([]vectorindex.Match, error) {
	count, err := e.index.Probe(ctx, vectorindex.DocProfileEmbedding, userID)
	if err != nil {
		return nil, fmt.Errorf("speaker: probe profiles: %w", err)
	}
	if count == 0 {
		return nil, nil
	}
	return e.index.KNN(ctx, vectorindex.DocProfileEmbedding, userID, embedding, 0)
}

// weightedMean folds a new vector into an existing centroid weighted by
// how many vectors the centroid already represents.
func weightedMean(centroid []float64, centroidCount int, next []float64) ([]float64, error) {
	if len(centroid) != len(next) {
		return nil, fmt.Errorf("dimension mismatch: %d vs %d", len(centroid), len(next))
	}
	if centroidCount < 0 {
		centroidCount = 0
	}
	total := float64(centroidCount + 1)
	out := make([]float64, len(centroid))
	for i := range centroid {
		out[i] = (centroid[i]*float64(centroidCount) + next[i]) / total
	}
	return out, nil
}
