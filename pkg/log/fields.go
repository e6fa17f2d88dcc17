// Copyright 2025 The axfor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package log

import (
	"time"

	"go.uber.org/zap"
)

// 通用字段

func String(key, val string) zap.Field {
	return zap.String(key, val)
}

func Bool(key string, val bool) zap.Field {
	return zap.Bool(key, val)
}

func Duration(key string, val time.Duration) zap.Field {
	return zap.Duration(key, val)
}

// Err 错误字段，键名为 "error"
func Err(err error) zap.Field {
	return zap.Error(err)
}

// head store 字段

// KeyString head 的键（字符串形式）
func KeyString(key string) zap.Field {
	return zap.String("key", key)
}

// Path 存储目录或 marker 文件路径
func Path(path string) zap.Field {
	return zap.String("path", path)
}

// FileName 目录项名称
func FileName(name string) zap.Field {
	return zap.String("file_name", name)
}

// Operation 存储操作名（add、remove、is_head、heads）
func Operation(op string) zap.Field {
	return zap.String("operation", op)
}

// worker pool 字段

func Worker(id int) zap.Field {
	return zap.Int("worker", id)
}

// Task 派发到 worker pool 的任务名
func Task(name string) zap.Field {
	return zap.String("task", name)
}

// HTTP 字段

func Username(name string) zap.Field {
	return zap.String("username", name)
}

func Method(method string) zap.Field {
	return zap.String("method", method)
}

func RemoteAddr(addr string) zap.Field {
	return zap.String("remote_addr", addr)
}

// 运行时字段

// Component 组件名
func Component(name string) zap.Field {
	return zap.String("component", name)
}

// Phase 关闭阶段
func Phase(phase string) zap.Field {
	return zap.String("phase", phase)
}

// Goroutine goroutine 名称
func Goroutine(name string) zap.Field {
	return zap.String("goroutine", name)
}
