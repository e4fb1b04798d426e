package out

import (
	"context"
	"errors"
	"fmt"

	"deckhand/internal/modules/export/domain"
	exportout "deckhand/internal/modules/export/port/out"
	gendto "deckhand/internal/modules/generation/dto"
	historyin "deckhand/internal/modules/history/port/in"
	reviewin "deckhand/internal/modules/review/port/in"
	apperrors "deckhand/internal/platform/errors"
)

// ReviewCardSource feeds exports from the review workflow: the set
// currently under review, or an archived session's cards. Archived
// sessions carry no deck name on the card endpoint, so it is resolved
// through the run archive when there is one.
type ReviewCardSource struct {
	review  reviewin.Usecase
	history historyin.Usecase
}

func NewReviewCardSource(review reviewin.Usecase, history historyin.Usecase) exportout.CardSource {
	return &ReviewCardSource{review: review, history: history}
}

func (s *ReviewCardSource) Cards(ctx context.Context, sessionID string) (domain.CardSet, error) {
	deckName, cards, err := s.review.Cards(ctx, sessionID)
	if err != nil {
		return domain.CardSet{}, fmt.Errorf("load review cards: %w", err)
	}
	if deckName == "" && sessionID != "" {
		run, err := s.history.Get(ctx, sessionID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return domain.CardSet{}, fmt.Errorf("resolve deck name: %w", err)
		}
		deckName = run.DeckName
	}
	return domain.CardSet{DeckName: deckName, Cards: toDomainCards(cards)}, nil
}

func toDomainCards(cards []gendto.CardView) []domain.Card {
	out := make([]domain.Card, 0, len(cards))
	for _, card := range cards {
		out = append(out, domain.Card{
			Front:       card.Front,
			Back:        card.Back,
			Tags:        card.Tags,
			ModelName:   card.ModelName,
			Fields:      card.Fields,
			SlideNumber: card.SlideNumber,
			SlideTopic:  card.SlideTopic,
		})
	}
	return out
}
