package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"loyalty-cart/cart"
	"loyalty-cart/client"
	models "loyalty-cart/model"
)

type kiosk struct {
	engine  *cart.Engine
	ledger  *client.Client
	catalog Catalog
	out     io.Writer
	p       *message.Printer
	timeout time.Duration
}

func newKiosk(e *cart.Engine, l *client.Client, c Catalog, out io.Writer) *kiosk {
	return &kiosk{
		engine:  e,
		ledger:  l,
		catalog: c,
		out:     out,
		p:       message.NewPrinter(language.AmericanEnglish),
		timeout: 10 * time.Second,
	}
}

func (k *kiosk) money(d decimal.Decimal) string {
	return k.p.Sprint(currency.Symbol(currency.USD.Amount(d.Round(2).InexactFloat64())))
}

func (k *kiosk) printf(format string, args ...interface{}) {
	fmt.Fprintf(k.out, format, args...)
}

func (k *kiosk) run(in io.Reader) {
	k.printf("Type \"help\" for commands.\n")
	sc := bufio.NewScanner(in)
	for {
		k.printf("> ")
		if !sc.Scan() {
			return
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return
		}
		if err := k.exec(fields[0], fields[1:]); err != nil {
			k.printf("error: %s\n", describe(err))
		}
	}
}

func describe(err error) string {
	var me *models.Error
	switch {
	case errors.Is(err, cart.ErrNotSignedIn):
		return "please log in first"
	case errors.As(err, &me) && me.Kind == models.KindInsufficientPoints && me.Current != nil:
		return fmt.Sprintf("not enough points (you have %d)", *me.Current)
	case errors.As(err, &me) && me.Kind == models.KindTransient:
		return "rewards service unavailable, try again"
	case errors.As(err, &me):
		return me.Message
	default:
		return err.Error()
	}
}

var errUsage = errors.New("wrong number of arguments, see help")

func (k *kiosk) exec(cmd string, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()

	switch cmd {
	case "help":
		k.help()
	case "menu":
		k.menu()
	case "register":
		if len(args) < 3 {
			return errUsage
		}
		u, err := k.ledger.Register(ctx, strings.Join(args[2:], " "), args[0], args[1])
		if err != nil {
			return err
		}
		k.engine.Session().SignIn(u)
		k.printf("Welcome, %s.\n", u.Name)
	case "login":
		if len(args) != 2 {
			return errUsage
		}
		u, err := k.ledger.Login(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		k.engine.Session().SignIn(u)
		k.printf("Signed in as %s, %d points.\n", u.Email, u.Rewards)
	case "logout":
		k.engine.Session().SignOut()
		k.ledger.Actor = ""
		k.printf("Signed out.\n")
	case "passwd":
		email := k.engine.Session().Email()
		if email == "" {
			return cart.ErrNotSignedIn
		}
		if len(args) != 2 {
			return errUsage
		}
		if err := k.ledger.ChangePassword(ctx, email, args[0], args[1]); err != nil {
			return err
		}
		k.printf("Password updated.\n")
	case "add":
		it, err := k.item(args)
		if err != nil {
			return err
		}
		if it.IsReward() {
			return fmt.Errorf("%s is a reward, use redeem", it.ID)
		}
		k.engine.AddItem(it)
		k.printf("Added %s.\n", it.Name)
	case "inc", "dec", "remove":
		if len(args) != 1 {
			return errUsage
		}
		switch cmd {
		case "inc":
			k.engine.UpdateQuantity(args[0], 1)
		case "dec":
			k.engine.UpdateQuantity(args[0], -1)
		default:
			k.engine.RemoveItem(args[0])
		}
		k.showCart()
	case "redeem":
		it, err := k.item(args)
		if err != nil {
			return err
		}
		if err := k.engine.RedeemReward(ctx, it); err != nil {
			return err
		}
		k.printf("Redeemed %s, %d points left.\n", it.Name, k.engine.Session().Points())
	case "cart":
		k.showCart()
	case "points":
		bal, err := k.engine.SyncBalance(ctx)
		if err != nil {
			return err
		}
		k.printf("You have %d points.\n", bal)
	case "checkout":
		if k.engine.Len() == 0 {
			return errors.New("cart is empty")
		}
		k.receipt(k.engine.CompleteOrder())
	case "customers":
		s := k.engine.Session()
		if !s.IsAdmin() {
			return errors.New("admin only")
		}
		k.ledger.Actor = s.Email()
		cs, err := k.ledger.Customers(ctx)
		if err != nil {
			return err
		}
		for _, c := range cs {
			pts := "-"
			if c.Rewards != nil {
				pts = fmt.Sprint(*c.Rewards)
			}
			k.printf("%4d  %-28s %-24s %6s  %s\n", c.ID, c.Email, c.FullName, pts, c.Role)
		}
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func (k *kiosk) item(args []string) (cart.Item, error) {
	if len(args) != 1 {
		return cart.Item{}, errUsage
	}
	it, ok := k.catalog.find(args[0])
	if !ok {
		return cart.Item{}, fmt.Errorf("no item %q, see menu", args[0])
	}
	return it, nil
}

func (k *kiosk) help() {
	k.printf(`Commands:
  menu                              list items and rewards
  register <email> <password> <name>
  login <email> <password>
  logout
  passwd <current> <new>
  add <id>                          add a menu item
  inc <id> | dec <id> | remove <id>
  redeem <id>                       spend points on a reward
  cart                              show cart and totals
  points                            refresh your balance
  checkout                          place the order
  customers                         list accounts (admin)
  quit
`)
}

func (k *kiosk) menu() {
	k.printf("Menu:\n")
	for _, it := range k.catalog.Menu {
		k.printf("  %-10s %-28s %s\n", it.ID, it.Name, k.money(it.Price()))
	}
	k.printf("Rewards:\n")
	for _, it := range k.catalog.Rewards {
		k.printf("  %-10s %-28s %d pts\n", it.ID, it.Name, it.PointsCost)
	}
}

func (k *kiosk) line(l cart.Line) string {
	if l.IsReward() {
		return fmt.Sprintf("  %-10s %-28s x%-3d %d pts", l.ID, l.Name, l.Quantity, l.PointsCost*int64(l.Quantity))
	}
	return fmt.Sprintf("  %-10s %-28s x%-3d %s", l.ID, l.Name, l.Quantity,
		k.money(l.Price().Mul(decimal.NewFromInt(int64(l.Quantity)))))
}

func (k *kiosk) totals(t cart.Totals) {
	k.printf("  subtotal %s\n  tax      %s\n  delivery %s\n  total    %s\n",
		k.money(t.Subtotal), k.money(t.Tax), k.money(t.DeliveryFee), k.money(t.Total))
}

func (k *kiosk) showCart() {
	lines := k.engine.Lines()
	if len(lines) == 0 {
		k.printf("Cart is empty.\n")
		return
	}
	for _, l := range lines {
		k.printf("%s\n", k.line(l))
	}
	k.totals(k.engine.Totals())
}

func (k *kiosk) receipt(r cart.Receipt) {
	k.printf("Order placed.\n")
	for _, l := range r.Lines {
		k.printf("%s\n", k.line(l))
	}
	k.totals(r.Totals)
	if r.Email == "" {
		k.printf("Log in next time to earn points.\n")
		return
	}
	k.printf("Earned %d points.\n", r.PointsEarned)
}
