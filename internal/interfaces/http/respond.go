package http

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/pkg/logger"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// errorKinds orden de evaluación: el primero que coincide con errors.Is gana.
var errorKinds = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION"},
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN"},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, "UNAUTHORIZED"},
	{domain.ErrInsufficientStock, fiber.StatusConflict, "INSUFFICIENT_STOCK"},
	{domain.ErrDuplicate, fiber.StatusConflict, "DUPLICATE"},
	{domain.ErrConflict, fiber.StatusConflict, "CONFLICT"},
	{domain.ErrStoreUnavailable, fiber.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
}

// respondError traduce un error de dominio a su status HTTP. Los errores desconocidos
// se devuelven a Fiber para que ErrorHandler los registre y responda 500.
func respondError(c *fiber.Ctx, err error) error {
	for _, k := range errorKinds {
		if !errors.Is(err, k.err) {
			continue
		}
		msg := err.Error()
		if k.status == fiber.StatusServiceUnavailable {
			msg = "almacenamiento no disponible, intente más tarde"
		}
		return c.Status(k.status).JSON(dto.ErrorResponse{Code: k.code, Message: msg})
	}
	return err
}

// ErrorHandler manejador final de Fiber: registra el error y responde sin filtrar detalles internos.
func ErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code := "HTTP_ERROR"
			if fe.Code == fiber.StatusNotFound {
				code = "NOT_FOUND"
			}
			return c.Status(fe.Code).JSON(dto.ErrorResponse{Code: code, Message: fe.Message})
		}
		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("error no controlado")
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
	}
}

// parseBody decodifica el JSON del cuerpo y aplica las reglas `validate` del DTO.
func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fmt.Errorf("%w: cuerpo inválido", domain.ErrInvalidInput)
	}
	return validateStruct(out)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(fields, ", "))
}

// identity devuelve company_id y user_id del token; el middleware garantiza que existen.
func identity(c *fiber.Ctx) (companyID, userID string) {
	return GetCompanyID(c), GetUserID(c)
}

// pageParams lee limit/offset de la query; los valores fuera de rango los ajusta el caso de uso.
func pageParams(c *fiber.Ctx) (dto.PageRequest, error) {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return page, fmt.Errorf("%w: paginación: %v", domain.ErrInvalidInput, err)
	}
	return page, nil
}
