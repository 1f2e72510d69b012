// internal/domain/cart/entity.go
package cart

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/artecho/storefront-backend/internal/domain/identity"
	"github.com/artecho/storefront-backend/internal/pkg/docstore"
)

var (
	// ErrInvalidLine is returned for a product without a usable id
	ErrInvalidLine = errors.New("cart: invalid line")
	// ErrInvalidQuantity is returned when adding less than one unit
	ErrInvalidQuantity = errors.New("cart: quantity must be at least 1")
	// ErrLineNotFound is returned when updating a product that is not in the cart
	ErrLineNotFound = errors.New("cart: line not found")
	// ErrIdentityUnresolved is returned by Initialize before the identity signal has resolved
	ErrIdentityUnresolved = errors.New("cart: identity not resolved")
)

// Product is the display snapshot captured when a product is added
type Product struct {
	ProductID string `json:"productId" binding:"required"`
	Name      string `json:"name"`
	Price     int64  `json:"price"` // minor units
	ImageURL  string `json:"imageUrl"`
}

// Validate checks that the product can key a cart line
func (p Product) Validate() error {
	id := strings.TrimSpace(p.ProductID)
	if id == "" {
		return fmt.Errorf("%w: productId is required", ErrInvalidLine)
	}
	// the id doubles as a document id
	if strings.Contains(id, "/") {
		return fmt.Errorf("%w: productId %q contains '/'", ErrInvalidLine, id)
	}
	return nil
}

// Line is one product's presence in a cart
type Line struct {
	ProductID string `json:"productId" firestore:"productId"`
	Name      string `json:"name" firestore:"name"`
	Price     int64  `json:"price" firestore:"price"`
	ImageURL  string `json:"imageUrl" firestore:"imageUrl"`
	Quantity  int    `json:"quantity" firestore:"quantity"`
}

// Subtotal returns price times quantity
func (l Line) Subtotal() int64 {
	return l.Price * int64(l.Quantity)
}

func (l Line) toDocument() map[string]any {
	return map[string]any{
		"productId": l.ProductID,
		"name":      l.Name,
		"price":     l.Price,
		"imageUrl":  l.ImageURL,
		"quantity":  l.Quantity,
	}
}

// lineFromDocument decodes a stored line; the document id is the product id
func lineFromDocument(doc docstore.Document) (Line, error) {
	line := Line{ProductID: doc.ID}
	if v, ok := doc.Data["productId"].(string); ok && v != "" {
		line.ProductID = v
	}
	line.Name, _ = doc.Data["name"].(string)
	line.ImageURL, _ = doc.Data["imageUrl"].(string)

	price, err := toInt64(doc.Data["price"])
	if err != nil {
		return Line{}, fmt.Errorf("line %s price: %w", doc.ID, err)
	}
	qty, err := toInt64(doc.Data["quantity"])
	if err != nil {
		return Line{}, fmt.Errorf("line %s quantity: %w", doc.ID, err)
	}
	line.Price = price
	line.Quantity = int(qty)
	return line, nil
}

// toInt64 accepts the numeric shapes the document backends hand back
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return wholeNumber(n)
	case float32:
		return wholeNumber(float64(n))
	case interface{ Int64() (int64, error) }:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported number type %T", v)
	}
}

func wholeNumber(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not a whole number", f)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%v is out of range", f)
	}
	return int64(f), nil
}

// Scope is the owner of a cart: the guest of this session or a specific user
type Scope struct {
	userID string
}

// GuestScope returns the guest scope
func GuestScope() Scope {
	return Scope{}
}

// UserScope returns the scope of a signed-in user
func UserScope(userID string) Scope {
	return Scope{userID: userID}
}

// ScopeOf derives the scope from an identity snapshot
func ScopeOf(st identity.State) Scope {
	if st.SignedIn() {
		return UserScope(st.UserID)
	}
	return GuestScope()
}

// IsGuest reports whether this is the guest scope
func (s Scope) IsGuest() bool {
	return s.userID == ""
}

// UserID returns the owning user id, empty for guests
func (s Scope) UserID() string {
	return s.userID
}

// String implements fmt.Stringer
func (s Scope) String() string {
	if s.IsGuest() {
		return "guest"
	}
	return "user:" + s.userID
}

// Totals summarises a cart
type Totals struct {
	ItemCount     int   `json:"item_count"`     // distinct products
	TotalQuantity int   `json:"total_quantity"` // sum of quantities
	SubTotal      int64 `json:"sub_total"`
}

// CalculateTotals sums a list of lines
func CalculateTotals(lines []Line) Totals {
	totals := Totals{ItemCount: len(lines)}
	for _, l := range lines {
		totals.TotalQuantity += l.Quantity
		totals.SubTotal += l.Subtotal()
	}
	return totals
}

const (
	usersCollection  = "users"
	cartCollection   = "cart"
	mergesCollection = "cartMerges"
)

// CollectionPath returns the document collection holding a user's cart lines
func CollectionPath(userID string) string {
	return docstore.Join(usersCollection, userID, cartCollection)
}

// LinePath returns the document path of one cart line
func LinePath(userID, productID string) string {
	return docstore.Join(usersCollection, userID, cartCollection, productID)
}

// MergeMarkerPath returns the document recording a completed guest merge
func MergeMarkerPath(userID, mergeID string) string {
	return docstore.Join(usersCollection, userID, mergesCollection, mergeID)
}

// LocalPath names a local slot in persistence error reports
func LocalPath(key string) string {
	return "local:" + key
}
