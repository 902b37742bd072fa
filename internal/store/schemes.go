package store

import (
	"context"
	"errors"

	"ledger_system/internal/domain"

	"gorm.io/gorm"
)

// CreateScheme inserts a scheme with its allocations
func (s *Store) CreateScheme(ctx context.Context, sc *domain.Scheme) error {
	numberAllocations(sc)
	return s.conn(ctx).Create(sc).Error
}

// GetScheme loads a scheme with allocations in order
func (s *Store) GetScheme(ctx context.Context, id uint) (*domain.Scheme, error) {
	var sc domain.Scheme
	err := s.conn(ctx).
		Preload("Allocations", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		First(&sc, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.Errorf(domain.KindSchemeNotFound, "scheme %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

// ListSchemes returns an owner's schemes; ownerID 0 lists every scheme
func (s *Store) ListSchemes(ctx context.Context, ownerID uint) ([]domain.Scheme, error) {
	q := s.conn(ctx).Preload("Allocations", func(db *gorm.DB) *gorm.DB { return db.Order("position") })
	if ownerID != 0 {
		q = q.Where("owner_id = ?", ownerID)
	}
	var schemes []domain.Scheme
	err := q.Order("id").Find(&schemes).Error
	return schemes, err
}

// SaveScheme overwrites a scheme and replaces its allocation set
func (s *Store) SaveScheme(ctx context.Context, sc *domain.Scheme) error {
	numberAllocations(sc)
	if err := s.conn(ctx).Where("scheme_id = ?", sc.ID).Delete(&domain.SchemeAllocation{}).Error; err != nil {
		return err
	}
	for i := range sc.Allocations {
		sc.Allocations[i].ID = 0
	}
	return s.conn(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(sc).Error
}

// DeleteScheme removes a scheme and its allocations
func (s *Store) DeleteScheme(ctx context.Context, id uint) error {
	if err := s.conn(ctx).Where("scheme_id = ?", id).Delete(&domain.SchemeAllocation{}).Error; err != nil {
		return err
	}
	res := s.conn(ctx).Delete(&domain.Scheme{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Errorf(domain.KindSchemeNotFound, "scheme %d not found", id)
	}
	return nil
}

func numberAllocations(sc *domain.Scheme) {
	for i := range sc.Allocations {
		sc.Allocations[i].Position = i
		sc.Allocations[i].SchemeID = sc.ID
	}
}
