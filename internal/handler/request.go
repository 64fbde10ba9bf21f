package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ebooking/internal/model"
)

// maxBodyBytes caps bodies read without echo's binder.
const maxBodyBytes = 1 << 20

var (
	errBadBody  = errors.New("invalid body")
	errCardType = errors.New("cardType must be at most 32 characters")
)

// maxBrandLen matches payment_methods.brand.
const maxBrandLen = 32

// looseInt accepts 12 as well as "12".
type looseInt int64

func (n *looseInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return err
	}
	*n = looseInt(v)
	return nil
}

func (n *looseInt) intPtr() *int {
	if n == nil {
		return nil
	}
	v := int(*n)
	return &v
}

// looseBool accepts true as well as "true", "on" and "1".
type looseBool bool

func (b *looseBool) UnmarshalJSON(raw []byte) error {
	*b = looseBool(parseBool(strings.Trim(string(raw), `"`)))
	return nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

type addressIn struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
}

func (a *addressIn) present() bool { return a != nil && strings.TrimSpace(a.Street) != "" }

type cardIn struct {
	CardNumber      string     `json:"cardNumber"`
	CardType        string     `json:"cardType"`
	ExpirationMonth *looseInt  `json:"expirationMonth"`
	ExpirationYear  *looseInt  `json:"expirationYear"`
	BillingAddress  *addressIn `json:"billingAddress"`
}

type registerReq struct {
	Name            string     `json:"name"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Email           string     `json:"email"`
	Password        string     `json:"password"`
	Phone           string     `json:"phone"`
	Subscribe       looseBool  `json:"subscribe_to_promotions"`
	HomeAddress     *addressIn `json:"home_address"`
	ShippingAddress *addressIn `json:"shipping_address"`
	PaymentCards    []cardIn   `json:"payment_cards"`
}

// decodeRegistration reads a JSON object or a urlencoded form regardless of
// the declared content type.
func decodeRegistration(c echo.Context) (registerReq, error) {
	var req registerReq
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return req, err
	}
	body := bytes.TrimSpace(raw)
	switch {
	case len(body) == 0:
		return req, nil
	case body[0] == '{':
		if err := json.Unmarshal(body, &req); err != nil {
			return req, errBadBody
		}
		return req, nil
	case bytes.ContainsRune(body, '='):
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return req, errBadBody
		}
		return registrationFromForm(form)
	}
	return req, errBadBody
}

// registrationFromForm maps flat form keys.  Addresses may be sent as
// home_address[street] or home_address.street, cards as
// payment_cards[0][cardNumber] and payment_cards[0][billingAddress][city].
func registrationFromForm(form url.Values) (registerReq, error) {
	req := registerReq{
		Name:      form.Get("name"),
		FirstName: form.Get("first_name"),
		LastName:  form.Get("last_name"),
		Email:     form.Get("email"),
		Password:  form.Get("password"),
		Phone:     form.Get("phone"),
		Subscribe: looseBool(parseBool(form.Get("subscribe_to_promotions"))),
	}
	req.HomeAddress = formAddress(form, "home_address")
	req.ShippingAddress = formAddress(form, "shipping_address")
	cards, err := formCards(form)
	if err != nil {
		return req, err
	}
	req.PaymentCards = cards
	return req, nil
}

// formCards collects payment_cards[i][...] entries in index order.
func formCards(form url.Values) ([]cardIn, error) {
	const prefix = "payment_cards["
	seen := map[int]bool{}
	var idx []int
	for k := range form {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		end := strings.IndexByte(k[len(prefix):], ']')
		if end < 0 {
			continue
		}
		i, err := strconv.Atoi(k[len(prefix) : len(prefix)+end])
		if err != nil || i < 0 || seen[i] {
			continue
		}
		seen[i] = true
		idx = append(idx, i)
	}
	sort.Ints(idx)

	out := make([]cardIn, 0, len(idx))
	for _, i := range idx {
		p := prefix + strconv.Itoa(i) + "]"
		month, err := formInt(form.Get(p + "[expirationMonth]"))
		if err != nil {
			return nil, errBadBody
		}
		year, err := formInt(form.Get(p + "[expirationYear]"))
		if err != nil {
			return nil, errBadBody
		}
		out = append(out, cardIn{
			CardNumber:      form.Get(p + "[cardNumber]"),
			CardType:        form.Get(p + "[cardType]"),
			ExpirationMonth: month,
			ExpirationYear:  year,
			BillingAddress:  formAddress(form, p+"[billingAddress]"),
		})
	}
	return out, nil
}

func formInt(s string) (*looseInt, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	n := looseInt(v)
	return &n, nil
}

func formAddress(form url.Values, prefix string) *addressIn {
	get := func(k string) string {
		if v := form.Get(prefix + "[" + k + "]"); v != "" {
			return v
		}
		return form.Get(prefix + "." + k)
	}
	a := &addressIn{Street: get("street"), City: get("city"), State: get("state"), ZipCode: get("zipCode")}
	if *a == (addressIn{}) {
		return nil
	}
	return a
}

// names resolves first and last name, splitting the legacy full name on the
// first whitespace run when first_name is blank.
func (r registerReq) names() (first, last string) {
	first, last = strings.TrimSpace(r.FirstName), strings.TrimSpace(r.LastName)
	if first != "" {
		return first, last
	}
	parts := strings.Fields(r.Name)
	if len(parts) == 0 {
		return "", last
	}
	first = parts[0]
	if len(parts) > 1 && last == "" {
		rest := strings.TrimSpace(r.Name)
		last = strings.TrimSpace(rest[len(first):])
	}
	return first, last
}

func (r registerReq) addresses() []model.Address {
	var out []model.Address
	if r.HomeAddress.present() {
		out = append(out, r.HomeAddress.model(model.AddressHome))
	}
	if r.ShippingAddress.present() {
		out = append(out, r.ShippingAddress.model(model.AddressShipping))
	}
	return out
}

func (a *addressIn) model(typ string) model.Address {
	return model.Address{Type: typ, Street: a.Street, City: a.City, State: a.State, PostalCode: a.ZipCode}
}

// cards converts submitted cards; entries without number or type are
// ignored.
func (r registerReq) cards() ([]model.PaymentMethod, error) {
	var out []model.PaymentMethod
	for _, in := range r.PaymentCards {
		number, brand := strings.TrimSpace(in.CardNumber), strings.TrimSpace(in.CardType)
		if number == "" || brand == "" {
			continue
		}
		if len(brand) > maxBrandLen {
			return nil, errCardType
		}
		l4 := last4(number)
		pm := model.PaymentMethod{
			Provider:      "dev",
			ProviderToken: "tok_" + brand + "_" + l4,
			Brand:         brand,
			Last4:         l4,
			ExpMonth:      in.ExpirationMonth.intPtr(),
			ExpYear:       in.ExpirationYear.intPtr(),
		}
		if in.BillingAddress != nil {
			b, err := json.Marshal(in.BillingAddress)
			if err != nil {
				return nil, err
			}
			pm.BillingAddress = string(b)
		}
		out = append(out, pm)
	}
	return out, nil
}

// last4 returns the last four characters of a card number.
func last4(number string) string {
	if len(number) <= 4 {
		return number
	}
	return number[len(number)-4:]
}
