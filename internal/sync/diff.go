package sync

import (
	"database/sql"
	"slices"

	"github.com/mschirtzinger/inkpot/internal/content"
	"github.com/mschirtzinger/inkpot/internal/db"
)

// articleFromEntry projects an entry onto the persisted article shape.
func articleFromEntry(e *content.Entry, categoryID sql.NullString) *db.Article {
	return &db.Article{
		Slug:                   e.Slug,
		Title:                  e.Title,
		Description:            e.Description,
		Cover:                  e.Cover,
		CategoryID:             categoryID,
		PublishedTime:          e.PublishedTime,
		IsDraft:                e.IsDraft,
		IsMainHeadline:         e.IsMainHeadline,
		IsSubHeadline:          e.IsSubHeadline,
		IsCategoryMainHeadline: e.IsCategoryMainHeadline,
		IsCategorySubHeadline:  e.IsCategorySubHeadline,
		Content:                e.Body,
	}
}

// diffArticle returns an update holding only the fields of want that
// differ from have.
func diffArticle(have, want *db.Article) db.ArticleUpdate {
	var u db.ArticleUpdate
	if have.Title != want.Title {
		u.Title = &want.Title
	}
	if have.Description != want.Description {
		u.Description = &want.Description
	}
	if have.Cover != want.Cover {
		u.Cover = &want.Cover
	}
	if have.CategoryID != want.CategoryID {
		u.CategoryID = &want.CategoryID
	}
	if !have.PublishedTime.Equal(want.PublishedTime) {
		u.PublishedTime = &want.PublishedTime
	}
	if have.IsDraft != want.IsDraft {
		u.IsDraft = &want.IsDraft
	}
	if have.IsMainHeadline != want.IsMainHeadline {
		u.IsMainHeadline = &want.IsMainHeadline
	}
	if have.IsSubHeadline != want.IsSubHeadline {
		u.IsSubHeadline = &want.IsSubHeadline
	}
	if have.IsCategoryMainHeadline != want.IsCategoryMainHeadline {
		u.IsCategoryMainHeadline = &want.IsCategoryMainHeadline
	}
	if have.IsCategorySubHeadline != want.IsCategorySubHeadline {
		u.IsCategorySubHeadline = &want.IsCategorySubHeadline
	}
	if have.Content != want.Content {
		u.Content = &want.Content
	}
	return u
}

// sameSet reports whether a and b hold the same elements, ignoring order
// and duplicates.
func sameSet(a, b []string) bool {
	as := slices.Compact(slices.Sorted(slices.Values(a)))
	bs := slices.Compact(slices.Sorted(slices.Values(b)))
	return slices.Equal(as, bs)
}

func diffCategory(have *db.Category, want *content.Category) db.CategoryUpdate {
	var u db.CategoryUpdate
	if have.Title != want.Title {
		u.Title = &want.Title
	}
	if have.Description != want.Description {
		u.Description = &want.Description
	}
	return u
}

func diffAuthor(have *db.Author, want *content.Author) db.AuthorUpdate {
	var u db.AuthorUpdate
	if have.Name != want.Name {
		u.Name = &want.Name
	}
	if have.Role != want.Role {
		u.Role = &want.Role
	}
	if have.Avatar != want.Avatar {
		u.Avatar = &want.Avatar
	}
	if have.Bio != want.Bio {
		u.Bio = &want.Bio
	}
	return u
}
