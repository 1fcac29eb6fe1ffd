package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/nilecart/api/internal/domain"
	pfirestore "github.com/nilecart/api/internal/platform/firestore"
)

// DiscountCodeRepository reads discount code definitions. The document ID is
// the uppercase code itself, which keeps uniqueness enforcement in the
// database.
type DiscountCodeRepository struct {
	codes *pfirestore.BaseRepository[discountCodeDocument]
}

func NewDiscountCodeRepository(provider *pfirestore.Provider) (*DiscountCodeRepository, error) {
	if provider == nil {
		return nil, errors.New("discount code repository requires firestore provider")
	}
	codes := pfirestore.NewBaseRepository[discountCodeDocument](provider, discountCodesCollection, nil, nil)
	return &DiscountCodeRepository{codes: codes}, nil
}

func (r *DiscountCodeRepository) FindByCode(ctx context.Context, code string) (domain.DiscountCode, error) {
	if r == nil || r.codes == nil {
		return domain.DiscountCode{}, errors.New("discount code repository not initialised")
	}
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return domain.DiscountCode{}, errors.New("discounts.findByCode: code is required")
	}
	doc, err := r.codes.Get(ctx, normalized)
	if err != nil {
		return domain.DiscountCode{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// CityRepository reads deliverable destinations.
type CityRepository struct {
	cities *pfirestore.BaseRepository[cityDocument]
}

func NewCityRepository(provider *pfirestore.Provider) (*CityRepository, error) {
	if provider == nil {
		return nil, errors.New("city repository requires firestore provider")
	}
	cities := pfirestore.NewBaseRepository[cityDocument](provider, citiesCollection, nil, nil)
	return &CityRepository{cities: cities}, nil
}

func (r *CityRepository) FindByID(ctx context.Context, cityID string) (domain.City, error) {
	if r == nil || r.cities == nil {
		return domain.City{}, errors.New("city repository not initialised")
	}
	cityID = strings.TrimSpace(cityID)
	if cityID == "" {
		return domain.City{}, errors.New("cities.findById: city id is required")
	}
	doc, err := r.cities.Get(ctx, cityID)
	if err != nil {
		return domain.City{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// ShippingMethodRepository reads admin-managed delivery options.
type ShippingMethodRepository struct {
	methods *pfirestore.BaseRepository[shippingMethodDocument]
}

func NewShippingMethodRepository(provider *pfirestore.Provider) (*ShippingMethodRepository, error) {
	if provider == nil {
		return nil, errors.New("shipping method repository requires firestore provider")
	}
	methods := pfirestore.NewBaseRepository[shippingMethodDocument](provider, shippingMethodsCollection, nil, nil)
	return &ShippingMethodRepository{methods: methods}, nil
}

func (r *ShippingMethodRepository) FindByID(ctx context.Context, methodID string) (domain.ShippingMethod, error) {
	if r == nil || r.methods == nil {
		return domain.ShippingMethod{}, errors.New("shipping method repository not initialised")
	}
	methodID = strings.TrimSpace(methodID)
	if methodID == "" {
		return domain.ShippingMethod{}, errors.New("shippingMethods.findById: method id is required")
	}
	doc, err := r.methods.Get(ctx, methodID)
	if err != nil {
		return domain.ShippingMethod{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// SettingsRepository reads the storefront settings document.
type SettingsRepository struct {
	settings *pfirestore.BaseRepository[settingsDocument]
}

func NewSettingsRepository(provider *pfirestore.Provider) (*SettingsRepository, error) {
	if provider == nil {
		return nil, errors.New("settings repository requires firestore provider")
	}
	settings := pfirestore.NewBaseRepository[settingsDocument](provider, settingsCollection, nil, nil)
	return &SettingsRepository{settings: settings}, nil
}

func (r *SettingsRepository) Get(ctx context.Context) (domain.StoreSettings, error) {
	if r == nil || r.settings == nil {
		return domain.StoreSettings{}, errors.New("settings repository not initialised")
	}
	doc, err := r.settings.Get(ctx, storeSettingsDocumentID)
	if err != nil {
		return domain.StoreSettings{}, err
	}
	return doc.Data.toDomain(), nil
}
