package db

import "time"

// Product is a catalog entity: a GPU or one of its board variants. At most
// one live row exists per display name.
type Product struct {
	ID          int64
	Name        string
	Vendor      string
	Description string
	ImageURL    string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProductAttrs is the writable attribute set of a product. The natural key
// is Name.
type ProductAttrs struct {
	Name        string
	Vendor      string
	Description string
	ImageURL    string
}

// SpecCategory groups spec facts under a stable short code.
type SpecCategory struct {
	ID        int64
	DomainTag string
	Code      int
	Name      string
}

// Spec is one attribute value of a product snapshot.
type Spec struct {
	ID           int64
	ProductID    int64
	CategoryCode int
	Name         string
	Value        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SpecInput is a spec fact headed for storage, keyed by category name
// rather than code; the store resolves the code.
type SpecInput struct {
	Category string
	Name     string
	Value    string
}

// Review is a type-tagged write-up attached to a board or product.
type Review struct {
	ID              int64
	MasterProductID int64
	Type            string
	Title           string
	Body            string
	MainURL         string
	PageURL         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ReviewRef is the slice of a review the reconciliation engine works from.
type ReviewRef struct {
	ID          int64
	Type        string
	MainURL     string
	PageURL     string
	ProductID   int64
	ProductName string
	UpdatedAt   time.Time
}

// ReviewDatum is a structured fact extracted from a review page.
type ReviewDatum struct {
	ID          int64
	ReviewID    int64
	DataType    string
	Key         string
	Value       string
	Unit        string
	ProductName string
}

// ReviewDatumInput is a review fact headed for storage.
type ReviewDatumInput struct {
	DataType    string
	Key         string
	Value       string
	Unit        string
	ProductName string
}

// ProductName pairs a stored product's id with its display name; the name
// cache is built from these.
type ProductName struct {
	ID   int64
	Name string
}
