package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/CryptoMichaael/Nexus/internal/config"
	"github.com/CryptoMichaael/Nexus/internal/wallet"
	"github.com/CryptoMichaael/Nexus/pkg/errors"
	"github.com/CryptoMichaael/Nexus/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const transferGasLimit = 21000

// Client 提现打款用的链上客户端，私钥由钱包管理器托管
type Client struct {
	client  *ethclient.Client
	wallet  *wallet.Manager
	chainID *big.Int
}

// NewClient 创建金库链客户端
func NewClient(cfg *config.TreasuryConfig, w *wallet.Manager) (*Client, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, errors.New(errors.ErrRPConnect,
			fmt.Sprintf("连接RPC失败: %s", cfg.RPCURL), err)
	}

	return &Client{
		client:  client,
		wallet:  w,
		chainID: big.NewInt(cfg.ChainID),
	}, nil
}

// Close 关闭链上客户端连接
func (c *Client) Close() {
	c.client.Close()
}

// Transfer 从金库钱包向目标地址打款，返回交易哈希
// 钱包未解锁时直接失败，由任务队列按退避重试
func (c *Client) Transfer(ctx context.Context, to string, amount *big.Int) (string, error) {
	key, err := c.wallet.Key()
	if err != nil {
		return "", err
	}
	from := ethcrypto.PubkeyToAddress(key.PublicKey)

	nonce, err := c.client.PendingNonceAt(ctx, from)
	if err != nil {
		return "", errors.New(errors.ErrRPConnect, "获取nonce失败", err)
	}
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", errors.New(errors.ErrRPConnect, "获取gas价格失败", err)
	}

	tx := types.NewTransaction(nonce, common.HexToAddress(to), amount, transferGasLimit, gasPrice, nil)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), key)
	if err != nil {
		return "", errors.New(errors.ErrWallet, "交易签名失败", err)
	}

	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return "", errors.New(errors.ErrRPConnect, "广播交易失败", err)
	}

	hash := signed.Hash().Hex()
	logger.WithFields(map[string]interface{}{
		"from":    from.Hex(),
		"to":      to,
		"tx_hash": hash,
	}).Info("提现交易已广播")

	return hash, nil
}

// Balance 查询金库钱包的链上余额
func (c *Client) Balance(ctx context.Context) (*big.Int, error) {
	addr, err := c.wallet.Address()
	if err != nil {
		return nil, err
	}
	balance, err := c.client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, errors.New(errors.ErrRPConnect, "查询金库余额失败", err)
	}
	return balance, nil
}
