/*
 * hashedbackup: content-addressed file backup engine
 * Copyright © 2026 the hashedbackup authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

// Package hashio provides streaming MD5 hashing shared by the hash cache,
// the snapshot engine, and the storage backends.
//
// MD5 is used only as a content identifier for deduplication, not as an
// integrity guarantee against an adversary.
package hashio

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"os"
)

// BufSize is the buffer size used for all streamed copy/hash operations.
const BufSize = 1024 * 1024 // 1 MiB

// CopyAndHash reads src until EOF, writing every chunk read to dst while
// feeding it through an MD5 digest. It returns the lowercase hex digest and
// the number of bytes copied.
func CopyAndHash(ctx context.Context, dst io.Writer, src io.Reader) (hex string, n int64, err error) {
	h := md5.New()
	w := io.MultiWriter(dst, h)
	n, err = copyWithContext(ctx, w, src)
	if err != nil {
		return "", n, err
	}
	return encodeHex(h.Sum(nil)), n, nil
}

// HashFile streams the file at path through MD5 without writing it anywhere
// else, returning the lowercase hex digest and the byte count read.
func HashFile(ctx context.Context, path string) (digestHex string, n int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := md5.New()
	n, err = copyWithContext(ctx, h, f)
	if err != nil {
		return "", n, err
	}
	return encodeHex(h.Sum(nil)), n, nil
}

func encodeHex(sum []byte) string {
	return hex.EncodeToString(sum)
}

// copyWithContext is io.Copy with a fixed-size reusable buffer and periodic
// cancellation checks, so that hashing a large file (local or over a remote
// transfer) remains interruptible without relying on OS-level signals.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, BufSize)
	var total int64

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[:nr])
			if nw > 0 {
				total += int64(nw)
			}
			if ew != nil {
				return total, ew
			}
			if nw != nr {
				return total, io.ErrShortWrite
			}
		}

		if er != nil {
			if errors.Is(er, io.EOF) {
				return total, nil
			}
			return total, er
		}
	}
}
