package api

import (
	"fmt"
	"net/url"
	"strconv"

	"grant-intake/internal/common/errors"
	"grant-intake/internal/models"
	"grant-intake/internal/search"
	"grant-intake/internal/store"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const maxListLimit = 500

func listFilterFrom(q url.Values, defaultLimit int) (store.ListFilter, error) {
	f := store.ListFilter{Status: models.DraftStatus(q.Get("status"))}

	var err error
	if f.Limit, err = intQuery(q, "limit", defaultLimit); err != nil {
		return f, err
	}
	if f.Offset, err = intQuery(q, "offset", 0); err != nil {
		return f, err
	}

	err = validation.ValidateStruct(&f,
		validation.Field(&f.Status, validation.In(models.StatusDraft, models.StatusSubmitted)),
		validation.Field(&f.Limit, validation.Min(0), validation.Max(maxListLimit)),
		validation.Field(&f.Offset, validation.Min(0)),
	)
	if err != nil {
		return f, errors.NewInvalidInputError(err.Error())
	}
	return f, nil
}

func searchQueryFrom(q url.Values) (search.Query, error) {
	sq := search.Query{Text: q.Get("q"), Category: q.Get("category")}

	var err error
	if sq.MinScore, err = intQuery(q, "minScore", 0); err != nil {
		return sq, err
	}
	if sq.From, err = intQuery(q, "from", 0); err != nil {
		return sq, err
	}
	if sq.Size, err = intQuery(q, "size", search.DefaultSize); err != nil {
		return sq, err
	}

	err = validation.ValidateStruct(&sq,
		validation.Field(&sq.Text, validation.Length(0, 200)),
		validation.Field(&sq.Category, validation.Length(0, 64)),
		validation.Field(&sq.MinScore, validation.Min(0)),
		validation.Field(&sq.From, validation.Min(0)),
		validation.Field(&sq.Size, validation.Min(0), validation.Max(search.MaxSize)),
	)
	if err != nil {
		return sq, errors.NewInvalidInputError(err.Error())
	}
	return sq, nil
}

func intQuery(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewInvalidInputError(fmt.Sprintf("%s: expected an integer, got %q", name, raw))
	}
	return n, nil
}
