package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/poanetwork/layer-bridge/entity"
)

func openApp(c *cli.Context) (*app, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return newApp(c.Context, cfg, false)
}

func parseMessageID(c *cli.Context) (common.Hash, error) {
	return parseHash(c, messageIDFlag.Name)
}

func parseHash(c *cli.Context, flag string) (common.Hash, error) {
	raw, err := hexutil.Decode(c.String(flag))
	if err != nil || len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: %s must be 32 hex bytes", entity.ErrValidation, flag)
	}
	return common.BytesToHash(raw), nil
}

func cancelCmd(c *cli.Context) error {
	id, err := parseMessageID(c)
	if err != nil {
		return err
	}
	a, err := openApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	msg, err := a.relayer.CancelMessage(c.Context, c.String(callerFlag.Name), id)
	if err != nil {
		return err
	}
	a.logger.WithFields(logrus.Fields{
		"message_id": msg.MessageID,
		"status":     msg.Status,
	}).Info("message canceled")
	return nil
}

func retryProofCmd(c *cli.Context) error {
	id, err := parseMessageID(c)
	if err != nil {
		return err
	}
	proof, err := hexutil.Decode(c.String(proofFlag.Name))
	if err != nil {
		return fmt.Errorf("%w: can't decode proof: %v", entity.ErrValidation, err)
	}
	var inputs []byte
	if raw := c.String(publicInputsFlag.Name); raw != "" {
		if inputs, err = hexutil.Decode(raw); err != nil {
			return fmt.Errorf("%w: can't decode public inputs: %v", entity.ErrValidation, err)
		}
	}
	a, err := openApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	msg, err := a.relayer.RetryWithNewProof(c.Context, c.String(callerFlag.Name), id, proof, inputs)
	if err != nil {
		return err
	}
	a.logger.WithFields(logrus.Fields{
		"message_id":  msg.MessageID,
		"status":      msg.Status,
		"retry_count": msg.RetryCount,
	}).Info("proof accepted")
	return nil
}

func swapRefundCmd(c *cli.Context) error {
	id, err := parseHash(c, swapIDFlag.Name)
	if err != nil {
		return err
	}
	a, err := openApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	swap, err := a.coordinator.Refund(c.Context, c.String(callerFlag.Name), id)
	if err != nil {
		return err
	}
	a.logger.WithFields(logrus.Fields{
		"swap_id":   swap.SwapID,
		"status":    swap.Status,
		"l2_status": swap.L2Status,
	}).Info("swap refund processed")
	return nil
}

func statusCmd(c *cli.Context) error {
	id, err := parseMessageID(c)
	if err != nil {
		return err
	}
	a, err := openApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.relayer.GetMessageStatus(c.Context, id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(status)
}
