package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

var (
	ErrFavoriteNotFound = errors.New("no favorite with that name")
	ErrFavoriteInvalid  = errors.New("favorite needs a name and a query")
)

type FavoritesService struct {
	repo *Repo
}

func NewFavoritesService(repo *Repo) *FavoritesService {
	return &FavoritesService{repo: repo}
}

func (f *FavoritesService) Create(ctx context.Context, guild, author, name, query string) error {
	name = strings.TrimSpace(name)
	query = strings.TrimSpace(query)
	if name == "" || query == "" {
		return ErrFavoriteInvalid
	}
	return f.repo.AddFavorite(ctx, &Favorite{
		GuildID: guild, Author: author, Name: name, Query: query,
	})
}

func (f *FavoritesService) Remove(ctx context.Context, guild, name string) error {
	n, err := f.repo.RemoveFavorite(ctx, guild, strings.TrimSpace(name))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrFavoriteNotFound
	}
	return nil
}

func (f *FavoritesService) Use(ctx context.Context, guild, name string) (*Favorite, error) {
	fav, err := f.repo.FindFavorite(ctx, guild, strings.TrimSpace(name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFavoriteNotFound
	}
	return fav, err
}

func (f *FavoritesService) List(ctx context.Context, guild string) ([]Favorite, error) {
	return f.repo.ListFavorites(ctx, guild)
}
