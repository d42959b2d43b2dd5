package dataset

import (
	"fmt"
	"path/filepath"
)

// Load reads books, book_tags, ratings and tags from dir.
func Load(dir string) (*Dataset, error) {
	books, err := LoadBooks(filepath.Join(dir, BooksFile))
	if err != nil {
		return nil, fmt.Errorf("load books: %w", err)
	}
	bookTags, err := LoadBookTags(filepath.Join(dir, BookTagsFile))
	if err != nil {
		return nil, fmt.Errorf("load book tags: %w", err)
	}
	ratings, err := LoadRatings(filepath.Join(dir, RatingsFile))
	if err != nil {
		return nil, fmt.Errorf("load ratings: %w", err)
	}
	tags, err := LoadTags(filepath.Join(dir, TagsFile))
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	return &Dataset{
		Books:    books,
		BookTags: bookTags,
		Ratings:  ratings,
		Tags:     tags,
	}, nil
}

// LoadBooks reads books.csv.
func LoadBooks(path string) ([]Book, error) {
	var books []Book
	err := readTable(path, []string{"book_id", "goodreads_book_id"}, func(r *record) error {
		id, err := r.parseInt("book_id")
		if err != nil {
			return err
		}
		grID, err := r.parseInt("goodreads_book_id")
		if err != nil {
			return err
		}
		attrs := make(map[string]string, len(r.cols))
		for name, idx := range r.cols {
			if name == "book_id" || name == "goodreads_book_id" {
				continue
			}
			attrs[name] = r.fields[idx]
		}
		books = append(books, Book{ID: id, GoodreadsID: grID, Attributes: attrs})
		return nil
	})
	return books, err
}

// LoadBookTags reads book_tags.csv.
func LoadBookTags(path string) ([]BookTag, error) {
	var rows []BookTag
	err := readTable(path, []string{"goodreads_book_id", "tag_id", "count"}, func(r *record) error {
		bookID, err := r.parseInt("goodreads_book_id")
		if err != nil {
			return err
		}
		tagID, err := r.parseInt("tag_id")
		if err != nil {
			return err
		}
		count, err := r.parseInt("count")
		if err != nil {
			return err
		}
		rows = append(rows, BookTag{GoodreadsBookID: bookID, TagID: tagID, Count: count})
		return nil
	})
	return rows, err
}

// LoadTags reads tags.csv.
func LoadTags(path string) ([]Tag, error) {
	var tags []Tag
	err := readTable(path, []string{"tag_id", "tag_name"}, func(r *record) error {
		id, err := r.parseInt("tag_id")
		if err != nil {
			return err
		}
		tags = append(tags, Tag{ID: id, Name: r.str("tag_name")})
		return nil
	})
	return tags, err
}

// LoadRatings reads ratings.csv.
func LoadRatings(path string) ([]Rating, error) {
	var ratings []Rating
	err := readTable(path, []string{"user_id", "book_id", "rating"}, func(r *record) error {
		userID, err := r.parseInt("user_id")
		if err != nil {
			return err
		}
		bookID, err := r.parseInt("book_id")
		if err != nil {
			return err
		}
		rating, err := r.parseInt("rating")
		if err != nil {
			return err
		}
		ratings = append(ratings, Rating{UserID: userID, BookID: bookID, Rating: rating})
		return nil
	})
	return ratings, err
}
