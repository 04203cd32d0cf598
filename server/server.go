package server

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"curafeed/feeds"
	"curafeed/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const kindNoFeed = "no_feed"

type ServerConfig struct {
	// The engine serving every request
	Engine *feeds.Engine

	// Window used by POST /api/refresh when no days parameter is given
	DaysBack int
}

type errorBody struct {
	Error   string                `json:"error"`
	Message string                `json:"message"`
	Result  *models.RefreshResult `json:"result,omitempty"`
}

type addProfileRequest struct {
	Reference string `json:"reference"`
}

type addProfileResponse struct {
	Profile models.Profile `json:"profile"`
	Added   bool           `json:"added"`
}

// statusFor maps an engine error kind to an HTTP status
func statusFor(kind string) int {
	switch kind {
	case feeds.KindInvalidReference, feeds.KindInvalidArgument:
		return fiber.StatusBadRequest
	case feeds.KindProfileNotFound, kindNoFeed:
		return fiber.StatusNotFound
	case feeds.KindRefreshInProgress:
		return fiber.StatusConflict
	case feeds.KindProvider:
		return fiber.StatusBadGateway
	case feeds.KindCorruptCache:
		// Recovered by the next successful refresh
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func sendError(c *fiber.Ctx, err error) error {
	kind := feeds.ErrorKind(err)
	return c.Status(statusFor(kind)).JSON(errorBody{Error: kind, Message: err.Error()})
}

// Returns a fiber.App instance serving the feed API of a single engine
func Server(config *ServerConfig) *fiber.App {
	engine := config.Engine
	daysBack := config.DaysBack
	if daysBack < 1 {
		daysBack = 7
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"status":  c.Response().StatusCode(),
			"latency": time.Since(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	api.Get("/profiles", func(c *fiber.Ctx) error {
		return c.JSON(engine.ListFollowed())
	})

	api.Post("/profiles", func(c *fiber.Ctx) error {
		var req addProfileRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(errorBody{
				Error:   feeds.KindInvalidArgument,
				Message: "request body must be a JSON object with a reference",
			})
		}

		profile, added, err := engine.AddProfile(c.UserContext(), req.Reference)
		if err != nil {
			return sendError(c, err)
		}

		status := fiber.StatusOK
		if added {
			status = fiber.StatusCreated
		}
		return c.Status(status).JSON(addProfileResponse{Profile: profile, Added: added})
	})

	api.Delete("/profiles/:id", func(c *fiber.Ctx) error {
		id, err := url.PathUnescape(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(errorBody{
				Error:   feeds.KindInvalidArgument,
				Message: "invalid profile id",
			})
		}

		if !engine.RemoveProfile(id) {
			return sendError(c, feeds.ErrProfileNotFound)
		}

		log.WithFields(log.Fields{
			"id": id,
		}).Info("Unfollowed profile")
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Post("/refresh", func(c *fiber.Ctx) error {
		days := daysBack
		if raw := c.Query("days"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(errorBody{
					Error:   feeds.KindInvalidArgument,
					Message: "days must be an integer",
				})
			}
			if parsed > feeds.MaxDaysBack {
				return c.Status(fiber.StatusBadRequest).JSON(errorBody{
					Error:   feeds.KindInvalidArgument,
					Message: fmt.Sprintf("days must be at most %d", feeds.MaxDaysBack),
				})
			}
			days = parsed
		}

		result, err := engine.RefreshFeed(c.UserContext(), days)
		if err != nil {
			if result == nil {
				return sendError(c, err)
			}
			// The feed was assembled but could not be saved
			kind := feeds.ErrorKind(err)
			return c.Status(statusFor(kind)).JSON(errorBody{
				Error:   kind,
				Message: err.Error(),
				Result:  result,
			})
		}
		return c.JSON(result)
	})

	api.Get("/feed", func(c *fiber.Ctx) error {
		snapshot, err := engine.GetCachedFeed(c.UserContext())
		if err != nil {
			return sendError(c, err)
		}
		if snapshot == nil {
			return c.Status(statusFor(kindNoFeed)).JSON(errorBody{
				Error:   kindNoFeed,
				Message: "no feed has been cached yet",
			})
		}
		return c.JSON(snapshot)
	})

	return app
}

