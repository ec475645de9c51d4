package common

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
)

type nameRequest struct {
	Name string `param:"name" validate:"required,min=3"`
}

func TestGenericEchoValidator_Validate(t *testing.T) {
	validator := &GenericEchoValidator{}

	if err := validator.Validate(&nameRequest{Name: "cam1"}); err != nil {
		t.Errorf("expected valid request, got %v", err)
	}

	err := validator.Validate(&nameRequest{Name: "c"})
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 HTTP error, got %v", err)
	}
}

func TestGenericEchoValidator_ConcurrentRequests(t *testing.T) {
	for name, validator := range map[string]*GenericEchoValidator{
		"zero value":  {},
		"constructed": NewGenericEchoValidator(),
	} {
		t.Run(name, func(t *testing.T) {
			e := echo.New()
			e.Validator = validator
			e.GET("/items/:name", func(c echo.Context) error {
				var request nameRequest
				if err := (&echo.DefaultBinder{}).BindPathParams(c, &request); err != nil {
					return err
				}
				if err := c.Validate(&request); err != nil {
					return err
				}
				return c.String(http.StatusOK, request.Name)
			})

			const workers = 16
			codes := make([]int, workers)
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					rec := httptest.NewRecorder()
					e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/cam1", nil))
					codes[i] = rec.Code
				}(i)
			}
			wg.Wait()

			for i, code := range codes {
				if code != http.StatusOK {
					t.Errorf("request %d: expected 200, got %d", i, code)
				}
			}
		})
	}
}
