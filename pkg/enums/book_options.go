package enums

// Book production options carried on an order. Unknown values fall back to
// the defaults applied during checkout materialization.

type BookSize string

const (
	BookSizeA4     BookSize = "a4"
	BookSizeA5     BookSize = "a5"
	BookSizePocket BookSize = "pocket"

	DefaultBookSize = BookSizeA5
)

// IsValid reports whether the value is a known BookSize.
func (b BookSize) IsValid() bool {
	switch b {
	case BookSizeA4, BookSizeA5, BookSizePocket:
		return true
	}
	return false
}

type PaperType string

const (
	PaperTypeWhite PaperType = "white"
	PaperTypeCream PaperType = "cream"

	DefaultPaperType = PaperTypeWhite
)

// IsValid reports whether the value is a known PaperType.
func (p PaperType) IsValid() bool {
	switch p {
	case PaperTypeWhite, PaperTypeCream:
		return true
	}
	return false
}

type Lamination string

const (
	LaminationGloss Lamination = "gloss"
	LaminationMatte Lamination = "matte"

	DefaultLamination = LaminationGloss
)

// IsValid reports whether the value is a known Lamination.
func (l Lamination) IsValid() bool {
	switch l {
	case LaminationGloss, LaminationMatte:
		return true
	}
	return false
}
