package models

// Category is one of the two complementary sides of a pairing.
type Category string

const (
	CategoryOne Category = "1"
	CategoryTwo Category = "2"
)

// Categories lists both categories in batch pairing order.
var Categories = []Category{CategoryOne, CategoryTwo}

// ParseCategory validates a raw category value.
func ParseCategory(raw string) (Category, bool) {
	c := Category(raw)
	return c, c.Valid()
}

// Valid reports whether c is one of the two known categories.
func (c Category) Valid() bool {
	return c == CategoryOne || c == CategoryTwo
}

// Opposite returns the complementary category.
func (c Category) Opposite() Category {
	if c == CategoryOne {
		return CategoryTwo
	}
	return CategoryOne
}

func (c Category) String() string {
	return string(c)
}
