package storage

import (
	"fmt"
	"strings"

	"papersearch/internal/models"

	"github.com/google/uuid"
)

// Materialize assigns ids to a NewPaper and its pages. Pages are numbered from 1
// in slice order.
func (np NewPaper) Materialize() (models.Paper, []models.PaperPage, error) {
	if strings.TrimSpace(np.UniversalID) == "" {
		return models.Paper{}, nil, fmt.Errorf("%w: empty universal id", ErrInvalidPaper)
	}
	if np.Votes < 0 {
		return models.Paper{}, nil, fmt.Errorf("%w: negative votes for %s", ErrInvalidPaper, np.UniversalID)
	}
	paperID, err := uuid.NewV7()
	if err != nil {
		return models.Paper{}, nil, fmt.Errorf("new paper id: %w", err)
	}
	p := models.Paper{
		ID:              paperID.String(),
		UniversalID:     np.UniversalID,
		Title:           np.Title,
		Abstract:        np.Abstract,
		PublicationDate: np.PublicationDate.UTC(),
		Votes:           np.Votes,
	}
	pages := make([]models.PaperPage, 0, len(np.Pages))
	for i, text := range np.Pages {
		pageID, err := uuid.NewV7()
		if err != nil {
			return models.Paper{}, nil, fmt.Errorf("new page id: %w", err)
		}
		pages = append(pages, models.PaperPage{
			ID:         pageID.String(),
			PaperID:    p.ID,
			PageNumber: i + 1,
			Text:       text,
		})
	}
	return p, pages, nil
}
