package testutil

import (
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

// StartServer starts an HTTP server exposing a small element API and returns
// its base URL. The server is shut down when the test ends.
func StartServer(t testing.TB) string {
	t.Helper()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/value/:ms", func(c *fiber.Ctx) error {
		ms, err := strconv.Atoi(c.Params("ms"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": 1, "value": err.Error()})
		}
		time.Sleep(time.Duration(ms) * time.Millisecond)
		return c.JSON(fiber.Map{"status": 0, "value": ms})
	})

	app.Get("/elements", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"selector": c.Query("selector"),
			"value": []fiber.Map{
				{"ELEMENT": "1"},
				{"ELEMENT": "2"},
			},
		})
	})

	app.Get("/element/:id/text", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": 0, "value": "text-" + c.Params("id")})
	})

	app.Get("/fail", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": 13, "value": "unknown error"})
	})

	app.Post("/echo", func(c *fiber.Ctx) error {
		var body any
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": 1, "value": err.Error()})
		}
		return c.JSON(fiber.Map{"status": 0, "value": body})
	})

	app.Delete("/session/:id", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": 0, "value": "deleted " + c.Params("id")})
	})

	app.Get("/empty", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		_ = app.Listener(ln)
	}()
	t.Cleanup(func() {
		_ = app.Shutdown()
	})

	return fmt.Sprintf("http://%s", ln.Addr().String())
}
