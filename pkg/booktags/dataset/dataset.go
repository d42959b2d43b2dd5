// Package dataset loads the goodbooks-10k tables the feature pipeline reads.
package dataset

// File names inside the data directory.
const (
	BooksFile    = "books.csv"
	BookTagsFile = "book_tags.csv"
	RatingsFile  = "ratings.csv"
	TagsFile     = "tags.csv"
)

// Book is one row of books.csv. Columns other than the two ids are kept
// verbatim in Attributes.
type Book struct {
	ID          int64
	GoodreadsID int64
	Attributes  map[string]string
}

// Tag is one row of tags.csv.
type Tag struct {
	ID   int64
	Name string
}

// BookTag is the number of users who applied a tag to a book.
type BookTag struct {
	GoodreadsBookID int64
	TagID           int64
	Count           int64
}

// Rating is one row of ratings.csv
type Rating struct {
	UserID int64
	BookID int64
	Rating int64
}

// Dataset holds all four tables of a single run.
type Dataset struct {
	Books    []Book
	BookTags []BookTag
	Ratings  []Rating
	Tags     []Tag
}

// TagNames returns an id → name lookup for tags.
func TagNames(tags []Tag) map[int64]string {
	names := make(map[int64]string, len(tags))
	for _, t := range tags {
		names[t.ID] = t.Name
	}
	return names
}
