package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"waiter-station/internal/domain"
	"waiter-station/internal/rpc"
	"waiter-station/internal/session"
)

var statusLabels = map[domain.TableStatus]string{
	domain.TableAvailable: "Available",
	domain.TableOccupied:  "Occupied - Order Placed",
	domain.TablePreparing: "Food Preparing",
	domain.TableReady:     "Ready to Serve",
	domain.TablePayment:   "Awaiting Payment",
}

// Terminal is the interactive waiter front-end. One command is read and fully
// handled at a time, so a submit can never race a pending call.
type Terminal struct {
	sess *session.Session
	in   *bufio.Scanner
	out  io.Writer
}

func Run(ctx context.Context, serverURL string) error {
	t := &Terminal{
		sess: session.New(rpc.NewClient(serverURL)),
		in:   bufio.NewScanner(os.Stdin),
		out:  os.Stdout,
	}
	return t.loop(ctx)
}

func (t *Terminal) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		var err error
		switch t.sess.Screen() {
		case session.ScreenLogin:
			err = t.loginScreen(ctx)
		case session.ScreenTables:
			err = t.tablesScreen(ctx)
		case session.ScreenOrder:
			err = t.orderScreen(ctx)
		case session.ScreenPayment:
			err = t.paymentScreen(ctx)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			t.report(err)
		}
	}
}

// report surfaces a failure without leaving the current screen. Tracebacks
// never print here; the session already routed them to diagnostics.
func (t *Terminal) report(err error) {
	var ve *session.ValidationError
	var be *rpc.BusinessError
	switch {
	case errors.As(err, &ve):
		fmt.Fprintf(t.out, "! %s\n", ve.Reason)
	case errors.As(err, &be):
		fmt.Fprintf(t.out, "! Server error: %s\n", be.Error())
	case errors.Is(err, session.ErrStale):
		// Navigated away before the response landed; nothing to show.
	default:
		fmt.Fprintf(t.out, "! %v\n", err)
	}
}

func (t *Terminal) prompt(label string) (string, error) {
	fmt.Fprint(t.out, label)
	if !t.in.Scan() {
		if err := t.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(t.in.Text()), nil
}

func (t *Terminal) loginScreen(ctx context.Context) error {
	fmt.Fprintln(t.out, "\n=== Waiter Login ===")
	name, err := t.prompt("name: ")
	if err != nil {
		return err
	}
	pin, err := t.prompt("pin: ")
	if err != nil {
		return err
	}
	return t.sess.Login(ctx, name, pin)
}

func (t *Terminal) tablesScreen(ctx context.Context) error {
	w := t.sess.Waiter()
	fmt.Fprintf(t.out, "\n=== Tables (waiter: %s) ===\n", w.Name)
	floors := t.sess.Floors()
	for _, f := range floors {
		fmt.Fprintf(t.out, "-- %s --\n", f.Name)
		for _, tb := range t.sess.TablesOnFloor(f.ID) {
			fmt.Fprintf(t.out, "  [%d] Table %d: %s\n", tb.ID, tb.TableNumber, label(tb.Status))
		}
	}
	cmd, err := t.prompt("table id, (r)efresh, (q)uit: ")
	if err != nil {
		return err
	}
	switch cmd {
	case "r":
		return t.sess.RefreshTables(ctx)
	case "q":
		t.sess.Logout()
		return io.EOF
	case "":
		return nil
	}

	id, err := strconv.ParseInt(cmd, 10, 64)
	if err != nil {
		fmt.Fprintln(t.out, "! unknown command")
		return nil
	}
	table, ok := findTable(t.sess.Tables(), id)
	if !ok {
		fmt.Fprintln(t.out, "! no such table")
		return nil
	}

	intent := session.IntentAddItems
	if !table.Available() {
		choice, err := t.prompt(fmt.Sprintf("Table %d has an order: (a)dd items or (p)ay? ", table.TableNumber))
		if err != nil {
			return err
		}
		if choice == "p" {
			intent = session.IntentPayment
		}
	}
	return t.sess.SelectTable(ctx, table, intent)
}

func (t *Terminal) orderScreen(ctx context.Context) error {
	order := t.sess.CurrentOrder()
	fmt.Fprintln(t.out, "\n=== Order ===")
	for _, l := range order.Lines {
		fmt.Fprintf(t.out, "  %dx %s @ %.2f\n", l.Qty, l.ProductName, l.PriceUnit)
	}
	fmt.Fprintf(t.out, "  total: %.2f\n", t.sess.OrderTotal())

	cmd, err := t.prompt("(l)ist products, a <product id>, + <id>, - <id>, n <notes>, (s)end, (b)ack: ")
	if err != nil {
		return err
	}
	verb, arg, _ := strings.Cut(cmd, " ")
	switch verb {
	case "l":
		for _, p := range t.sess.Products() {
			fmt.Fprintf(t.out, "  [%d] %s %.2f\n", p.ID, p.Name, p.ListPrice)
		}
		return nil
	case "a":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			fmt.Fprintln(t.out, "! a <product id>")
			return nil
		}
		for _, p := range t.sess.Products() {
			if p.ID == id {
				return t.sess.AddProduct(p)
			}
		}
		fmt.Fprintln(t.out, "! no such product")
		return nil
	case "+", "-":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			fmt.Fprintf(t.out, "! %s <product id>\n", verb)
			return nil
		}
		delta := 1
		if verb == "-" {
			delta = -1
		}
		return t.sess.UpdateLineQuantity(id, delta)
	case "n":
		t.sess.SetOrderNotes(arg)
		return nil
	case "s":
		return t.sess.SendOrder(ctx)
	case "b":
		t.sess.Back()
		return t.sess.RefreshTables(ctx)
	case "":
		return nil
	default:
		fmt.Fprintln(t.out, "! unknown command")
		return nil
	}
}

func (t *Terminal) paymentScreen(ctx context.Context) error {
	total := t.sess.OrderTotal()
	fmt.Fprintf(t.out, "\n=== Payment (total %.2f) ===\n", total)
	for _, m := range t.sess.PaymentMethods() {
		fmt.Fprintf(t.out, "  [%d] %s\n", m.ID, m.Name)
	}
	method, err := t.prompt("payment method id (or b to go back): ")
	if err != nil {
		return err
	}
	if method == "b" {
		t.sess.Back()
		return t.sess.RefreshTables(ctx)
	}
	methodID, perr := strconv.ParseInt(method, 10, 64)
	if perr != nil {
		fmt.Fprintln(t.out, "! enter a payment method id")
		return nil
	}
	amountStr, err := t.prompt(fmt.Sprintf("amount received (total %.2f): ", total))
	if err != nil {
		return err
	}
	amount, perr := strconv.ParseFloat(amountStr, 64)
	if perr != nil {
		fmt.Fprintln(t.out, "! enter an amount")
		return nil
	}

	change := t.sess.Change(amount)
	if err := t.sess.ProcessPayment(ctx, methodID, amount); err != nil {
		return err
	}
	fmt.Fprintf(t.out, "Payment received. Change: %.2f\n", change)
	return nil
}

func label(s domain.TableStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return statusLabels[domain.TableAvailable]
}

func findTable(tables []domain.Table, id int64) (domain.Table, bool) {
	for _, t := range tables {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Table{}, false
}
