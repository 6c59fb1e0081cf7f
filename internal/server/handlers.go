package server

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"

	"github.com/superjcast/showwatch/pkg/calendar"
	"github.com/superjcast/showwatch/pkg/storage"
)

type jsonSerializer struct{}

func (jsonSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (jsonSerializer) Deserialize(c echo.Context, i interface{}) error {
	if err := json.NewDecoder(c.Request().Body).Decode(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return nil
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.DB.Raw().PingContext(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "time": s.Now().UTC()})
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.DB.GetStats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleShows(c echo.Context) error {
	col := storage.Collection(c.QueryParam("collection"))
	if col == "" {
		col = storage.CollectionSchedule
	}
	if !col.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown collection "+string(col))
	}
	shows, err := s.DB.ListShows(c.Request().Context(), col)
	if err != nil {
		return err
	}
	if shows == nil {
		shows = []storage.Show{}
	}
	return c.JSON(http.StatusOK, shows)
}

func (s *Server) handleEmbargoes(c echo.Context) error {
	active, err := s.DB.ActiveEmbargoes(c.Request().Context(), "")
	if err != nil {
		return err
	}
	if active == nil {
		active = []storage.Embargo{}
	}
	return c.JSON(http.StatusOK, active)
}

func (s *Server) handleCalendar(c echo.Context) error {
	ctx := c.Request().Context()
	var shows []storage.Show
	for _, col := range []storage.Collection{storage.CollectionSchedule, storage.CollectionOther} {
		list, err := s.DB.ListShows(ctx, col)
		if err != nil {
			return err
		}
		shows = append(shows, list...)
	}
	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(calendar.Build(shows, s.Now())))
}
