package controller

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/webhook"
	"gorm.io/gorm"

	"mailprobe/config"
	"mailprobe/models"
)

func InitStripe() {
	stripe.Key = config.AppConfig.StripeSecretKey
}

// Credit packs purchasable through Stripe. Price is in cents.
var creditPacks = map[string]struct {
	Credits int
	Price   int64
}{
	"small":  {Credits: 10000, Price: 1000},
	"medium": {Credits: 50000, Price: 4000},
	"large":  {Credits: 250000, Price: 15000},
}

type PaymentRequest struct {
	Pack string `json:"pack" validate:"required,oneof=small medium large"`
}

// CreatePaymentIntent starts a credit purchase. The webhook credits the
// account once the intent succeeds.
func CreatePaymentIntent(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req PaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	pack, ok := creditPacks[req.Pack]
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown credit pack",
		})
	}

	customerID, err := getOrCreateStripeCustomer(user)
	if err != nil {
		logrus.WithError(err).Error("failed to create Stripe customer")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process payment",
		})
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(pack.Price),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		Customer: stripe.String(customerID),
		Metadata: map[string]string{
			"user_id": strconv.Itoa(int(user.ID)),
			"pack":    req.Pack,
			"credits": strconv.Itoa(pack.Credits),
		},
		Description: stripe.String("Purchase of " + req.Pack + " verification credit pack"),
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		logrus.WithError(err).Error("failed to create payment intent")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process payment",
		})
	}

	transaction := models.CreditTransaction{
		UserID:                user.ID,
		Type:                  "purchase",
		Credits:               pack.Credits,
		AmountCents:           pack.Price,
		Currency:              "usd",
		StripePaymentIntentID: &pi.ID,
		Description:           "Purchase of " + req.Pack + " verification credit pack",
	}
	if err := config.DB.Create(&transaction).Error; err != nil {
		logrus.WithError(err).Error("failed to create transaction")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process transaction",
		})
	}

	return c.JSON(fiber.Map{
		"clientSecret":   pi.ClientSecret,
		"transaction_id": transaction.ID,
		"amount":         pack.Price,
		"currency":       "usd",
	})
}

// HandlePaymentWebhook receives Stripe events and applies purchased
// credits on payment_intent.succeeded.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	event, err := webhook.ConstructEvent(c.Body(), c.Get("Stripe-Signature"), config.AppConfig.StripeWebhookSecret)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook signature",
		})
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid event payload",
			})
		}
		if err := applyCreditPurchase(&pi); err != nil {
			logrus.WithError(err).WithField("payment_intent", pi.ID).Error("failed to apply credit purchase")
			return c.SendStatus(fiber.StatusInternalServerError)
		}
	default:
		logrus.WithField("type", event.Type).Debug("ignoring stripe event")
	}

	return c.SendStatus(fiber.StatusOK)
}

func applyCreditPurchase(pi *stripe.PaymentIntent) error {
	userID, err := strconv.Atoi(pi.Metadata["user_id"])
	if err != nil {
		return err
	}
	credits, err := strconv.Atoi(pi.Metadata["credits"])
	if err != nil {
		return err
	}

	return config.DB.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			return err
		}
		user.VerifyCredits += credits
		if err := tx.Save(&user).Error; err != nil {
			return err
		}
		return tx.Model(&models.CreditTransaction{}).
			Where("stripe_payment_intent_id = ?", pi.ID).
			Update("description", gorm.Expr("description || ' (completed)'")).Error
	})
}

func getOrCreateStripeCustomer(user *models.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
	}
	if user.Name != nil {
		params.Name = stripe.String(*user.Name)
	}
	cust, err := customer.New(params)
	if err != nil {
		return "", err
	}

	user.StripeCustomerID = &cust.ID
	if err := config.DB.Save(user).Error; err != nil {
		return "", err
	}
	return cust.ID, nil
}
