package usecase

import (
	"context"

	"deckhand/internal/modules/source/dto"
	sourcein "deckhand/internal/modules/source/port/in"
	"deckhand/internal/modules/source/service"
)

type Interactor struct {
	svc *service.Inspector
}

func NewInteractor(svc *service.Inspector) sourcein.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Inspect(ctx context.Context, path string) (dto.InspectionView, error) {
	insp, err := i.svc.Inspect(ctx, path)
	if err != nil {
		return dto.InspectionView{}, err
	}
	return dto.InspectionView{
		Path:       insp.Path,
		Title:      insp.Title,
		Kind:       string(insp.Kind),
		SizeBytes:  insp.SizeBytes,
		Pages:      insp.Pages,
		PagesExact: insp.PagesExact,
		Lines:      insp.Lines,
	}, nil
}
