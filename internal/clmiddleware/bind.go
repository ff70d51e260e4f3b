package clmiddleware

import (
	"blogcms/internal/models/clerrors"
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	// les champs inconnus d'un corps JSON sont une erreur de validation
	binding.EnableDecoderDisallowUnknownFields = true
}

// BindJSON décode et valide le corps de la requête. Toute erreur est une
// erreur de validation.
func BindJSON(c *gin.Context, dest any) error {
	err := c.ShouldBindJSON(dest)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, io.EOF):
		return clerrors.Validation("corps de requête vide")
	case errors.As(err, &verrs) && len(verrs) > 0:
		return clerrors.Validation("champ %s invalide (%s)", verrs[0].Field(), verrs[0].Tag())
	default:
		return clerrors.Validation("données invalides: %v", err)
	}
}

// ParamID lit un identifiant numérique dans l'URL
func ParamID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, clerrors.Validation("identifiant invalide")
	}
	return uint(id), nil
}
