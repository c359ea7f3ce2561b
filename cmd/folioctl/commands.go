package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"github.com/aristath/stockfolio/internal/di"
	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/modules/snapshots"
	"github.com/aristath/stockfolio/internal/modules/trading"
	"github.com/aristath/stockfolio/internal/reliability"
)

// accountFlag is embedded by commands that act on one account
type accountFlag struct {
	username string
}

func (a *accountFlag) setFlags(f *flag.FlagSet) {
	f.StringVar(&a.username, "u", "", "username of the account")
}

func (a *accountFlag) resolve(ctx context.Context, c *di.Container) (int64, error) {
	if strings.TrimSpace(a.username) == "" {
		return 0, fmt.Errorf("-u is required: %w", domain.ErrInvalidInput)
	}
	account, err := c.LedgerStore.FindAccountByUsername(ctx, strings.TrimSpace(a.username))
	if err != nil {
		return 0, err
	}
	return account.ID, nil
}

type registerCmd struct {
	*env
	accountFlag
	password string
}

func (*registerCmd) Name() string     { return "register" }
func (*registerCmd) Synopsis() string { return "create an account with the initial cash balance" }
func (*registerCmd) Usage() string {
	return `folioctl register -u <username> -p <password>

  Creates an account credited with INITIAL_CASH.
`
}

func (c *registerCmd) SetFlags(f *flag.FlagSet) {
	c.setFlags(f)
	f.StringVar(&c.password, "p", "", "password of the new account")
}

func (c *registerCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(ctx, func(ctx context.Context, d *di.Container) error {
		account, err := d.AccountService.Register(ctx, c.username, c.password)
		if err != nil {
			return err
		}
		return c.printMarkdown(fmt.Sprintf("Registered **%s** (account %d) with %s.\n",
			account.Username, account.ID, domain.FormatUSD(account.Cash)))
	})
}

type quoteCmd struct {
	*env
}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "look up the current price of symbols" }
func (*quoteCmd) Usage() string {
	return `folioctl quote <symbol>...
`
}

func (*quoteCmd) SetFlags(*flag.FlagSet) {}

func (c *quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		return c.usageError("at least one symbol is required")
	}
	return c.run(ctx, func(ctx context.Context, d *di.Container) error {
		quotes := make([]domain.Quote, 0, f.NArg())
		for _, symbol := range f.Args() {
			q, err := d.TradingService.Quote(ctx, symbol)
			if err != nil {
				return err
			}
			quotes = append(quotes, q)
		}
		return c.printMarkdown(quotesMarkdown(quotes))
	})
}

type tradeSide string

const (
	sideBuy  tradeSide = "buy"
	sideSell tradeSide = "sell"
)

type tradeCmd struct {
	*env
	accountFlag
	side tradeSide
}

func (c *tradeCmd) Name() string { return string(c.side) }
func (c *tradeCmd) Synopsis() string {
	return fmt.Sprintf("%s shares at the current quote", c.side)
}
func (c *tradeCmd) Usage() string {
	return fmt.Sprintf(`folioctl %s -u <username> <symbol> <quantity>
`, c.side)
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	c.setFlags(f)
}

func (c *tradeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		return c.usageError("expected <symbol> <quantity>")
	}
	symbol, quantity := f.Arg(0), f.Arg(1)

	return c.run(ctx, func(ctx context.Context, d *di.Container) error {
		accountID, err := c.resolve(ctx, d)
		if err != nil {
			return err
		}

		var result trading.TradeResult
		if c.side == sideBuy {
			result, err = d.TradingService.Buy(ctx, accountID, symbol, quantity)
		} else {
			result, err = d.TradingService.Sell(ctx, accountID, symbol, quantity)
		}
		if err != nil {
			return err
		}
		return c.printMarkdown(tradeMarkdown(result))
	})
}

type reportCmd struct {
	*env
	accountFlag
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "value an account's open positions" }
func (*reportCmd) Usage() string {
	return `folioctl report -u <username>

  Prices every open position and prints cash, unrealized profit and net worth.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	c.setFlags(f)
}

func (c *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(ctx, func(ctx context.Context, d *di.Container) error {
		accountID, err := c.resolve(ctx, d)
		if err != nil {
			return err
		}
		report, err := d.PortfolioService.PortfolioReport(ctx, accountID)
		// A partial report is still printed; it lists what could not be priced
		if err != nil && !errors.Is(err, domain.ErrQuoteUnavailable) {
			return err
		}
		if perr := c.printMarkdown(reportMarkdown(c.username, report)); perr != nil {
			return perr
		}
		return err
	})
}

type historyCmd struct {
	*env
	accountFlag
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list an account's transactions" }
func (*historyCmd) Usage() string {
	return `folioctl history -u <username>
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	c.setFlags(f)
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(ctx, func(ctx context.Context, d *di.Container) error {
		accountID, err := c.resolve(ctx, d)
		if err != nil {
			return err
		}
		txns, err := d.PortfolioService.TransactionHistory(ctx, accountID)
		if err != nil {
			return err
		}
		return c.printMarkdown(historyMarkdown(txns))
	})
}

type performanceCmd struct {
	*env
	accountFlag
	window int
}

func (*performanceCmd) Name() string     { return "performance" }
func (*performanceCmd) Synopsis() string { return "summarize an account's net worth snapshots" }
func (*performanceCmd) Usage() string {
	return `folioctl performance -u <username> [-window n]
`
}

func (c *performanceCmd) SetFlags(f *flag.FlagSet) {
	c.setFlags(f)
	f.IntVar(&c.window, "window", snapshots.DefaultWindow, "moving average window in snapshots")
}

func (c *performanceCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(ctx, func(ctx context.Context, d *di.Container) error {
		accountID, err := c.resolve(ctx, d)
		if err != nil {
			return err
		}
		perf, err := d.SnapshotService.Performance(ctx, accountID, c.window)
		if err != nil {
			return err
		}
		return c.printMarkdown(performanceMarkdown(perf))
	})
}

type snapshotCmd struct {
	*env
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "record the net worth of every account now" }
func (*snapshotCmd) Usage() string {
	return `folioctl snapshot
`
}

func (*snapshotCmd) SetFlags(*flag.FlagSet) {}

func (c *snapshotCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(ctx, func(ctx context.Context, d *di.Container) error {
		result, err := d.SnapshotService.TakeAll(ctx)
		if err != nil {
			return err
		}
		return c.printMarkdown(fmt.Sprintf("Snapshots taken for %d accounts, %d failed.\n", result.Accounts, result.Failed))
	})
}

type backupCmd struct {
	*env
	output string
}

func (*backupCmd) Name() string     { return "backup" }
func (*backupCmd) Synopsis() string { return "archive the databases" }
func (*backupCmd) Usage() string {
	return `folioctl backup [-o <file.tar.gz>]

  Without -o the archive is uploaded to BACKUP_BUCKET.
`
}

func (c *backupCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "write the archive to this file instead of uploading it")
}

func (c *backupCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(ctx, func(ctx context.Context, d *di.Container) error {
		if c.output != "" {
			metadata, err := d.BackupService.CreateArchive(ctx, c.output)
			if err != nil {
				return err
			}
			return c.printMarkdown(backupMarkdown(c.output, metadata))
		}

		if d.ObjectStore == nil {
			return fmt.Errorf("%w: set BACKUP_BUCKET or use -o", reliability.ErrBackupsDisabled)
		}
		result, err := d.BackupService.CreateAndUpload(ctx)
		if err != nil {
			return err
		}
		return c.printMarkdown(fmt.Sprintf("Uploaded `%s` (%d bytes).\n", result.Key, result.SizeBytes))
	})
}
