package storefront

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/cart"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
)

const Usage = `usage: shopper <command> [args]

commands:
  login <email> <password>
  add <productId> <qty>
  remove <productId>
  show
  ship <address> <city> <postalCode> <country>
  checkout
  clear`

var ErrUsage = errors.New(Usage)

// Shell runs shopper commands against a local cart and the API.
type Shell struct {
	api       *Client
	store     cart.Store
	checkout  *Checkout
	pricing   domain.PricingPolicy
	tokenPath string
	out       io.Writer
}

func NewShell(api *Client, store cart.Store, checkout *Checkout, pricing domain.PricingPolicy, home string, out io.Writer) *Shell {
	return &Shell{
		api:       api,
		store:     store,
		checkout:  checkout,
		pricing:   pricing,
		tokenPath: filepath.Join(home, "token"),
		out:       out,
	}
}

func (s *Shell) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	if err := s.restoreSession(); err != nil {
		return err
	}

	cmd, rest := args[0], args[1:]
	switch {
	case cmd == "login" && len(rest) == 2:
		return s.login(ctx, rest[0], rest[1])
	case cmd == "add" && len(rest) == 2:
		return s.add(ctx, rest[0], rest[1])
	case cmd == "remove" && len(rest) == 1:
		return s.update(ctx, func(c *cart.Cart) error { c.Remove(rest[0]); return nil })
	case cmd == "show" && len(rest) == 0:
		return s.show(ctx)
	case cmd == "ship" && len(rest) == 4:
		return s.update(ctx, func(c *cart.Cart) error {
			c.ShippingAddress = domain.ShippingAddress{Address: rest[0], City: rest[1], PostalCode: rest[2], Country: rest[3]}
			return nil
		})
	case cmd == "checkout" && len(rest) == 0:
		return s.runCheckout(ctx)
	case cmd == "clear" && len(rest) == 0:
		return s.store.Clear(ctx)
	default:
		return ErrUsage
	}
}

func (s *Shell) restoreSession() error {
	token, err := os.ReadFile(s.tokenPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	s.api.SetToken(strings.TrimSpace(string(token)))
	return nil
}

func (s *Shell) login(ctx context.Context, email, password string) error {
	profile, err := s.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.tokenPath), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(s.tokenPath, []byte(profile.Token), 0o600); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	_, err = fmt.Fprintf(s.out, "Signed in as %s\n", profile.Name)
	return err
}

func (s *Shell) add(ctx context.Context, productID, qtyArg string) error {
	qty, err := strconv.Atoi(qtyArg)
	if err != nil || qty < 1 {
		return fmt.Errorf("quantity must be a positive number, got %q", qtyArg)
	}

	product, err := s.api.Product(ctx, productID)
	if err != nil {
		return err
	}
	if qty > product.CountInStock {
		return fmt.Errorf("only %d of %s in stock", product.CountInStock, product.Name)
	}

	return s.update(ctx, func(c *cart.Cart) error {
		c.Add(cart.Item{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Image:     product.Image,
			Qty:       qty,
		})
		return nil
	})
}

func (s *Shell) update(ctx context.Context, change func(*cart.Cart) error) error {
	c, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	if err := change(c); err != nil {
		return err
	}
	if err := s.store.Save(ctx, c); err != nil {
		return err
	}
	return s.print(c)
}

func (s *Shell) show(ctx context.Context) error {
	c, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	return s.print(c)
}

func (s *Shell) print(c *cart.Cart) error {
	if c.IsEmpty() {
		_, err := fmt.Fprintln(s.out, "Your cart is empty")
		return err
	}

	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PRODUCT\tNAME\tQTY\tPRICE")
	for _, it := range c.Items {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", it.ProductID, it.Name, it.Qty, it.Price.StringFixed(2))
	}

	totals := c.Totals(s.pricing)
	_, _ = fmt.Fprintf(tw, "\t\tItems\t%s\n", totals.ItemsPrice.StringFixed(2))
	_, _ = fmt.Fprintf(tw, "\t\tShipping\t%s\n", totals.ShippingPrice.StringFixed(2))
	_, _ = fmt.Fprintf(tw, "\t\tTax\t%s\n", totals.TaxPrice.StringFixed(2))
	_, _ = fmt.Fprintf(tw, "\t\tTotal\t%s\n", totals.TotalPrice.StringFixed(2))
	if addr := c.ShippingAddress; addr.Address != "" {
		_, _ = fmt.Fprintf(tw, "Ship to: %s, %s %s, %s\n", addr.Address, addr.City, addr.PostalCode, addr.Country)
	}
	return tw.Flush()
}

func (s *Shell) runCheckout(ctx context.Context) error {
	c, err := s.store.Load(ctx)
	if err != nil {
		return err
	}

	res, err := s.checkout.Run(ctx, c)
	if res != nil && res.Order != nil {
		_, _ = fmt.Fprintf(s.out, "Order %s placed, total %s\n", res.Order.ID, res.Order.TotalPrice.StringFixed(2))
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(s.out, "Payment client secret: %s\n", res.ClientSecret)
	return err
}
