package routes

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/borderlesste/cavb-visa-sub000/models"
	"github.com/borderlesste/cavb-visa-sub000/services"
	"github.com/borderlesste/cavb-visa-sub000/storage"
	"github.com/borderlesste/cavb-visa-sub000/utils"

	jwtGo "github.com/golang-jwt/jwt/v4"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
	"golang.org/x/crypto/bcrypt"
)

// Register creates an applicant account and sends the verification email.
func Register(mailer *services.Mailer) iris.Handler {
	return func(ctx iris.Context) {
		var userInput RegisterUserInput
		if err := ctx.ReadJSON(&userInput); err != nil {
			utils.HandleValidationErrors(err, ctx)
			return
		}

		var newUser models.User
		userExists, userExistsErr := getAndHandleUserExists(&newUser, userInput.Email)
		if userExistsErr != nil {
			utils.CreateInternalServerError(ctx)
			return
		}
		if userExists {
			utils.CreateEmailAlreadyRegistered(ctx)
			return
		}

		hashedPassword, hashErr := hashAndSaltPassword(userInput.Password)
		if hashErr != nil {
			utils.CreateInternalServerError(ctx)
			return
		}

		newUser = models.User{
			FirstName: userInput.FirstName,
			LastName:  userInput.LastName,
			Email:     strings.ToLower(userInput.Email),
			Password:  hashedPassword,
			Role:      "applicant",
		}
		if err := storage.DB.Create(&newUser).Error; err != nil {
			utils.CreateInternalServerError(ctx)
			return
		}

		sendVerification(mailer, &newUser)

		returnUserWithTokens(&newUser, ctx)
	}
}

// Login authenticates by email and password, rate-limited per email.
func Login(ctx iris.Context) {
	var userInput LoginUserInput
	if err := ctx.ReadJSON(&userInput); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	email := strings.ToLower(userInput.Email)
	if !utils.AllowAttempt("login:"+email, loginAttemptLimit(), 15*time.Minute) {
		utils.JSONError(ctx, iris.StatusTooManyRequests, "rate_limited", "too many login attempts, try again later")
		return
	}

	var existingUser models.User
	userExists, userExistsErr := getAndHandleUserExists(&existingUser, email)
	if userExistsErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if !userExists {
		utils.JSONError(ctx, iris.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}

	passwordErr := bcrypt.CompareHashAndPassword([]byte(existingUser.Password), []byte(userInput.Password))
	if passwordErr != nil {
		utils.JSONError(ctx, iris.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}

	returnUserWithTokens(&existingUser, ctx)
}

// Me returns the authenticated user's profile.
func Me(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var user models.User
	if err := storage.DB.First(&user, claims.ID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	ctx.JSON(iris.Map{"user": &user})
}

// VerifyEmail consumes the token from the verification link. Idempotent:
// a second visit on an already verified account succeeds.
func VerifyEmail(ctx iris.Context) {
	tokenStr := ctx.Params().Get("token")
	if tokenStr == "" {
		utils.JSONError(ctx, iris.StatusBadRequest, "bad_request", "missing token")
		return
	}

	token, err := jwtGo.Parse(tokenStr, func(t *jwtGo.Token) (interface{}, error) {
		return []byte(os.Getenv("EMAIL_TOKEN_SECRET")), nil
	})
	if err != nil || !token.Valid {
		utils.JSONError(ctx, iris.StatusUnauthorized, "invalid_token", "verification link is invalid or expired")
		return
	}

	claims, ok := token.Claims.(jwtGo.MapClaims)
	if !ok {
		utils.JSONError(ctx, iris.StatusUnauthorized, "invalid_token", "verification link is invalid or expired")
		return
	}
	id, ok := claims["ID"].(float64)
	if !ok || id <= 0 {
		utils.JSONError(ctx, iris.StatusUnauthorized, "invalid_token", "verification link is invalid or expired")
		return
	}

	var user models.User
	if err := storage.DB.First(&user, uint(id)).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	if !user.EmailVerified {
		if err := storage.DB.Model(&user).Update("email_verified", true).Error; err != nil {
			utils.CreateInternalServerError(ctx)
			return
		}
	}

	ctx.JSON(iris.Map{"success": true, "message": "email verified"})
}

// ResendVerification sends a fresh verification link, rate-limited.
func ResendVerification(mailer *services.Mailer) iris.Handler {
	return func(ctx iris.Context) {
		claims := jwt.Get(ctx).(*utils.AccessToken)

		var user models.User
		if err := storage.DB.First(&user, claims.ID).Error; err != nil {
			utils.CreateNotFound(ctx)
			return
		}
		if user.EmailVerified {
			ctx.JSON(iris.Map{"success": true, "message": "email already verified"})
			return
		}

		if !utils.AllowAttempt("resend-verification:"+user.Email, 3, time.Hour) {
			utils.JSONError(ctx, iris.StatusTooManyRequests, "rate_limited", "too many requests, try again later")
			return
		}

		sendVerification(mailer, &user)
		ctx.JSON(iris.Map{"success": true, "message": "verification email sent"})
	}
}

func sendVerification(mailer *services.Mailer, user *models.User) {
	token, tokenErr := utils.CreateEmailVerificationToken(user.ID, user.Email)
	if tokenErr != nil {
		log.Printf("verification token for user %d failed: %v", user.ID, tokenErr)
		return
	}
	go mailer.SendVerificationEmail(user.Email, user.FirstName, token)
}

func getAndHandleUserExists(user *models.User, email string) (exists bool, err error) {
	userExistsQuery := storage.DB.Where("email = ?", strings.ToLower(email)).Limit(1).Find(user)
	if userExistsQuery.Error != nil {
		return false, userExistsQuery.Error
	}
	return userExistsQuery.RowsAffected > 0, nil
}

func hashAndSaltPassword(password string) (hashedPassword string, err error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func returnUserWithTokens(user *models.User, ctx iris.Context) {
	tokenPair, tokenErr := utils.CreateTokenPair(user.ID)
	if tokenErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{
		"user":         user,
		"accessToken":  string(tokenPair.AccessToken),
		"refreshToken": string(tokenPair.RefreshToken),
	})
}

func loginAttemptLimit() int64 {
	// RATE_LIMIT_LOGIN overrides the default window cap of 10 attempts.
	if v := os.Getenv("RATE_LIMIT_LOGIN"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return 10
}

type RegisterUserInput struct {
	FirstName string `json:"firstName" validate:"required,max=256"`
	LastName  string `json:"lastName" validate:"required,max=256"`
	Email     string `json:"email" validate:"required,max=256,email"`
	Password  string `json:"password" validate:"required,min=8,max=256"`
}

type LoginUserInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
