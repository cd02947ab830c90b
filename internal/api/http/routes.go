package httpapi

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/nimbus/internal/auth"
	"github.com/i474232898/nimbus/internal/maps"
	"github.com/i474232898/nimbus/internal/store"
	"github.com/i474232898/nimbus/internal/weather"
)

var validate = validator.New()

// PlacesAPI is the subset of maps.Places the API serves.
type PlacesAPI interface {
	Autocomplete(ctx context.Context, input string) ([]maps.Prediction, error)
	Details(ctx context.Context, placeID string, fields []string) (*maps.Place, error)
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// WeatherLookup answers ad-hoc weather questions that do not go through a
// user's board.
type WeatherLookup interface {
	CityWeather(ctx context.Context, city string) (json.RawMessage, error)
	CityForecast(ctx context.Context, city string) (json.RawMessage, error)
	CityAirQuality(ctx context.Context, city string) (json.RawMessage, error)
	ReverseGeocode(ctx context.Context, lat, lon float64, limit int) (json.RawMessage, error)
}

// Deps are the services the routes are served from.
type Deps struct {
	Users   *store.MemoryStore
	Tokens  *auth.Issuer
	Weather *weather.Service
	Lookup  WeatherLookup
	Places  PlacesAPI
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	v1 := app.Group("/api/v1")

	v1.Post("/auth/login", d.login)
	v1.Post("/auth/register", d.register)

	authed := requireToken(d.Tokens)
	v1.Post("/auth/logout", authed, d.logout)
	v1.Get("/me", authed, d.me)
	v1.Put("/me/preferences", authed, d.savePreferences)

	v1.Get("/weather", authed, d.weatherView)
	v1.Post("/weather/refresh", authed, d.refreshWeather)
	v1.Get("/weather/city", authed, d.cityWeather)

	v1.Get("/places/autocomplete", authed, d.autocomplete)
	v1.Get("/places/:placeId", authed, d.placeDetails)
	v1.Get("/geocode/reverse", authed, d.reverseGeocode)
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,alphanum,min=3,max=32"`
	Password string `json:"password" validate:"required,min=5,max=72"`
}

type sessionResponse struct {
	Token     string     `json:"token"`
	ExpiresAt int64      `json:"expiresAt"`
	User      store.User `json:"user"`
}

func bindBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func (d Deps) issue(c *fiber.Ctx, status int, u store.User) error {
	token, claims, err := d.Tokens.Issue(u.Username)
	if err != nil {
		return err
	}
	return c.Status(status).JSON(sessionResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Unix(),
		User:      u,
	})
}

func (d Deps) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	u, err := d.Users.Login(req.Identifier, req.Password)
	if err != nil {
		return err
	}
	return d.issue(c, fiber.StatusOK, u)
}

func (d Deps) register(c *fiber.Ctx) error {
	var req registerRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	u, err := d.Users.Register(req.Email, req.Username, req.Password)
	if err != nil {
		return err
	}
	return d.issue(c, fiber.StatusCreated, u)
}

func (d Deps) logout(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	d.Tokens.Revoke(claims)
	d.Weather.Forget(claims.Username)
	return c.SendStatus(fiber.StatusNoContent)
}

func (d Deps) me(c *fiber.Ctx) error {
	u, err := d.Users.Get(claimsFrom(c).Username)
	if err != nil {
		return err
	}
	return c.JSON(u)
}

func (d Deps) savePreferences(c *fiber.Ctx) error {
	var patch store.PreferencesPatch
	if err := bindBody(c, &patch); err != nil {
		return err
	}
	u, err := d.Users.SavePreferences(claimsFrom(c).Username, patch)
	if err != nil {
		return err
	}
	return c.JSON(u)
}

func (d Deps) weatherView(c *fiber.Ctx) error {
	return c.JSON(d.Weather.View(claimsFrom(c).Username))
}

func (d Deps) refreshWeather(c *fiber.Ctx) error {
	u, err := d.Users.Get(claimsFrom(c).Username)
	if err != nil {
		return err
	}
	if err := d.Weather.Refresh(c.UserContext(), u.Username, u.Region, u.Locations); err != nil {
		return err
	}
	return c.JSON(d.Weather.View(u.Username))
}

type cityQuery struct {
	Name string `validate:"required,max=100"`
	Kind string `validate:"omitempty,oneof=current forecast air"`
}

func (d Deps) cityWeather(c *fiber.Ctx) error {
	q := cityQuery{
		Name: strings.TrimSpace(c.Query("name")),
		Kind: c.Query("kind"),
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	var (
		data json.RawMessage
		err  error
	)
	switch q.Kind {
	case "forecast":
		data, err = d.Lookup.CityForecast(c.UserContext(), q.Name)
	case "air":
		data, err = d.Lookup.CityAirQuality(c.UserContext(), q.Name)
	default:
		data, err = d.Lookup.CityWeather(c.UserContext(), q.Name)
	}
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(data)
}

// suggestion is the flattened form of an autocomplete prediction.
type suggestion struct {
	Description   string `json:"description"`
	PlaceID       string `json:"placeId"`
	MainText      string `json:"mainText"`
	SecondaryText string `json:"secondaryText"`
}

func (d Deps) autocomplete(c *fiber.Ctx) error {
	input := c.Query("input")
	if err := validate.Var(input, "max=200"); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	preds, err := d.Places.Autocomplete(c.UserContext(), input)
	if err != nil {
		return err
	}
	out := make([]suggestion, 0, len(preds))
	for _, p := range preds {
		out = append(out, suggestion{
			Description:   p.Description,
			PlaceID:       p.PlaceID,
			MainText:      p.StructuredFormatting.MainText,
			SecondaryText: p.StructuredFormatting.SecondaryText,
		})
	}
	return c.JSON(out)
}

func (d Deps) placeDetails(c *fiber.Ctx) error {
	var fields []string
	if raw := c.Query("fields"); raw != "" {
		for _, f := range strings.Split(raw, ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
	}

	place, err := d.Places.Details(c.UserContext(), strings.TrimSpace(c.Params("placeId")), fields)
	if err != nil {
		return err
	}
	return c.JSON(place)
}

type reverseQuery struct {
	Lat    string `validate:"required,latitude"`
	Lng    string `validate:"required,longitude"`
	Source string `validate:"omitempty,oneof=google openweather"`
}

func (d Deps) reverseGeocode(c *fiber.Ctx) error {
	q := reverseQuery{
		Lat:    c.Query("lat"),
		Lng:    c.Query("lng"),
		Source: c.Query("source"),
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	lat, _ := strconv.ParseFloat(q.Lat, 64)
	lng, _ := strconv.ParseFloat(q.Lng, 64)

	if q.Source == "openweather" {
		data, err := d.Lookup.ReverseGeocode(c.UserContext(), lat, lng, 1)
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(data)
	}

	addr, err := d.Places.ReverseGeocode(c.UserContext(), lat, lng)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"address": addr})
}
